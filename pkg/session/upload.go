package session

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

// ErrNoFileSelected is the local validation error for an upload attempted
// without a file; no request is sent.
var ErrNoFileSelected = errors.New("please select a CSV file")

// ResultListener observes the latest upload result. Listeners run on the
// uploading goroutine after the result has been published.
type ResultListener func(*api.UploadResult)

// Uploader submits CSV files and publishes the latest result to every
// subscribed renderer, so the summary and chart views always observe the
// same instance. At most one upload may be in flight.
type Uploader struct {
	mu        sync.Mutex
	busy      bool
	latest    *api.UploadResult
	lastPath  string
	listeners []ResultListener

	client func() *api.Client
	logger *slog.Logger
}

// NewUploader creates an uploader. client is called per upload so the
// current session credential is always used.
func NewUploader(client func() *api.Client, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, logger: logger}
}

// Subscribe registers a listener for future results.
func (u *Uploader) Subscribe(fn ResultListener) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listeners = append(u.listeners, fn)
}

// Latest returns the most recent successful result, or nil before the
// first successful upload.
func (u *Uploader) Latest() *api.UploadResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.latest
}

// Busy reports whether an upload is in flight.
func (u *Uploader) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

// LastPath returns the most recently attempted file, whether or not the
// attempt succeeded. Views use it to offer a retry without forcing the
// user to reselect the file.
func (u *Uploader) LastPath() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastPath
}

// Upload submits the CSV at path. On success the result replaces the
// previous one wholesale and listeners are notified; on failure the
// previous result is left untouched so dependent views keep rendering it.
func (u *Uploader) Upload(ctx context.Context, path string) (*api.UploadResult, error) {
	if path == "" {
		return nil, ErrNoFileSelected
	}

	u.mu.Lock()
	if u.busy {
		u.mu.Unlock()
		return nil, ErrBusy
	}
	u.busy = true
	u.lastPath = path
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.busy = false
		u.mu.Unlock()
	}()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	result, err := u.client().UploadCSV(ctx, filepath.Base(path), f)
	if err != nil {
		u.logger.Warn("upload failed", "file", filepath.Base(path), "error", err)
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	u.mu.Lock()
	u.latest = result
	listeners := append([]ResultListener(nil), u.listeners...)
	u.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}

	u.logger.Info("upload complete",
		"file", filepath.Base(path),
		"total", result.TotalEquipment,
		"types", len(result.TypeDistribution))
	return result, nil
}
