package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/renjie/featex/internal/core/ports"
)

// ZipProvider 实现 ports.ArchiveProvider
// 将一个 zip 档案内的 CSV 文件作为输入实体暴露出来
type ZipProvider struct {
	rc *zip.ReadCloser
}

var _ ports.ArchiveProvider = (*ZipProvider)(nil)

// OpenZip 打开本地 zip 档案
func OpenZip(path string) (*ZipProvider, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &ZipProvider{rc: rc}, nil
}

// Entities 返回档案内全部 CSV 实体名 (档案内顺序)
func (p *ZipProvider) Entities() []string {
	var names []string
	for _, f := range p.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(f.Name, ".csv") {
			names = append(names, f.Name)
		}
	}
	return names
}

// Open 打开指定实体的数据流
func (p *ZipProvider) Open(name string) (io.ReadCloser, error) {
	for _, f := range p.rc.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("entity %q not found in archive", name)
}

func (p *ZipProvider) Close() error {
	return p.rc.Close()
}
