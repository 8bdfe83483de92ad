package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/renjie/featex/internal/core/domain"
	"github.com/renjie/featex/internal/core/ports"
)

// CSVSource 实现 ports.RecordSource
// 专门处理 HIPE 风格的 CSV 实体: 一列固定格式时间戳 + 若干数值通道列
type CSVSource struct {
	log *zap.SugaredLogger
}

// NewCSVSource 创建 CSV 记录来源
func NewCSVSource(log *zap.SugaredLogger) *CSVSource {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CSVSource{log: log}
}

var _ ports.RecordSource = (*CSVSource)(nil)

// Read 实现 ports.RecordSource.Read
// 逐行读取 CSV 流；只保留画像中配置的通道列。
// 时间戳列缺失是致命输入错误；数值单元格无法解析时记为 NaN (不中断)
func (s *CSVSource) Read(ctx context.Context, stream io.Reader, profile domain.MachineProfile) ([]domain.Record, error) {
	reader := csv.NewReader(stream)
	// 允许变长字段，缺失的尾部单元格按缺失值处理
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// 1. Read Header
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	tsIdx := -1
	channelIdx := make(map[string]int, len(profile.Channels))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == domain.TimestampColumn {
			tsIdx = i
			continue
		}
		for _, ch := range profile.Channels {
			if h == ch {
				channelIdx[ch] = i
				break
			}
		}
	}
	if tsIdx < 0 {
		return nil, domain.ErrMissingTimestampColumn
	}

	// 2. Read Records
	var records []domain.Record
	line := 1
	for {
		if line%1000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error at line %d: %w", line+1, err)
		}
		line++

		if tsIdx >= len(row) {
			return nil, fmt.Errorf("line %d: %w", line, domain.ErrMissingTimestampColumn)
		}

		values := make(map[string]float64, len(channelIdx))
		for ch, idx := range channelIdx {
			values[ch] = parseCell(row, idx)
		}
		records = append(records, domain.Record{
			Timestamp: strings.TrimSpace(row[tsIdx]),
			Values:    values,
		})
	}

	s.log.Infof("parsed %d records (%d/%d configured channels present)", len(records), len(channelIdx), len(profile.Channels))
	return records, nil
}

// parseCell 解析数值单元格；缺失或无法解析时为 NaN
func parseCell(row []string, idx int) float64 {
	if idx >= len(row) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
