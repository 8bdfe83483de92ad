package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/renjie/featex/internal/core/ports"
)

// HTTPFetcher 实现 ports.ArchiveFetcher
// 本地档案缺失时从远端下载；已存在则直接复用
type HTTPFetcher struct {
	client *http.Client
	log    *zap.SugaredLogger
}

// NewHTTPFetcher 创建档案下载器
func NewHTTPFetcher(log *zap.SugaredLogger) *HTTPFetcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: 30 * time.Minute},
		log:    log,
	}
}

var _ ports.ArchiveFetcher = (*HTTPFetcher)(nil)

// Ensure 实现 ports.ArchiveFetcher.Ensure
// 先写入临时文件，完成后原子重命名，避免半下载的档案被后续运行误用
func (f *HTTPFetcher) Ensure(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		f.log.Infof("found %q", dest)
		return nil
	}
	f.log.Infof("file %q missing, downloading", dest)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".featex-download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	f.log.Infof("file %q downloaded", dest)
	return nil
}
