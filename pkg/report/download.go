// Package report handles the on-demand PDF export. The report endpoint
// takes no parameters; its contents are determined server-side, so the
// download is treated as an opaque binary payload and never assumed to
// match the currently displayed upload result.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

// DefaultFilename is used when the caller does not choose a destination.
const DefaultFilename = "equipment_report.pdf"

// ErrDownloadBusy is returned while a previous download is still pending.
var ErrDownloadBusy = errors.New("a report download is already in flight")

// Downloader fetches the PDF report and materializes it as a local file.
type Downloader struct {
	mu   sync.Mutex
	busy bool

	client func() *api.Client
	logger *slog.Logger
}

// NewDownloader creates a downloader. client is called per download so the
// current session credential is always used.
func NewDownloader(client func() *api.Client, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{client: client, logger: logger}
}

// Busy reports whether a download is pending.
func (d *Downloader) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// Download streams the PDF report into destPath (DefaultFilename in the
// working directory when empty). On failure no file is left behind; a
// partially written file is removed.
func (d *Downloader) Download(ctx context.Context, destPath string) error {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return ErrDownloadBusy
	}
	d.busy = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	if destPath == "" {
		destPath = DefaultFilename
	}

	f, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return fmt.Errorf("report: create file: %w", err)
	}

	if err := d.client().DownloadReport(ctx, f); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		d.logger.Warn("report download failed", "dest", destPath, "error", err)
		return fmt.Errorf("report download failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("report: close file: %w", err)
	}

	d.logger.Info("report saved", "dest", destPath)
	return nil
}
