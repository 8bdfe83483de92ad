package output

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/renjie/featex/internal/core/domain"
	"github.com/renjie/featex/internal/core/ports"
)

// CSVSink 实现 ports.MatrixSink
// 每个实体一个 CSV 文件: 行键为窗口标识 (列头 "id")，weekday 为首个
// 数据列；NaN 哨兵序列化为空单元格 (与参考输出兼容)
type CSVSink struct {
	dir string
}

// NewCSVSink 创建输出到指定目录的矩阵写出器
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

var _ ports.MatrixSink = (*CSVSink)(nil)

// Write 实现 ports.MatrixSink.Write
func (s *CSVSink) Write(ctx context.Context, entity string, matrix *domain.FeatureMatrix) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(entity))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"id"}, matrix.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, 1+len(matrix.Columns))
	for i, window := range matrix.Windows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		row[0] = window
		for j, v := range matrix.Cells[i] {
			row[1+j] = formatCell(v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// formatCell NaN 写为空单元格，整数值不带小数部分
func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CompressDir 将输出目录压缩为同名 zip (dir.zip)，返回压缩包路径
func CompressDir(dir string) (string, error) {
	zipPath := dir + ".zip"
	zf, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		dst, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("compress %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return zipPath, zf.Close()
}
