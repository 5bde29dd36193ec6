package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

func downloaderFor(baseURL string) *Downloader {
	client := api.New(api.Config{BaseURL: baseURL, Token: "tok", Timeout: 5 * time.Second})
	return NewDownloader(func() *api.Client { return client }, nil)
}

func TestDownloadWritesFile(t *testing.T) {
	pdf := []byte("%PDF-1.4 report body")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/equipment/report/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "report.pdf")
	d := downloaderFor(srv.URL)
	if err := d.Download(context.Background(), dest); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(got) != string(pdf) {
		t.Errorf("payload mismatch: %q", got)
	}
	if d.Busy() {
		t.Error("downloader must not stay busy after completion")
	}
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "report.pdf")
	d := downloaderFor(srv.URL)
	if err := d.Download(context.Background(), dest); err == nil {
		t.Fatal("expected download to fail")
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no file may be saved on failure, stat err: %v", err)
	}
	if d.Busy() {
		t.Error("downloader must re-enable after failure")
	}
}

func TestDownloadBusyGuard(t *testing.T) {
	d := downloaderFor("http://unused")
	d.mu.Lock()
	d.busy = true
	d.mu.Unlock()

	if err := d.Download(context.Background(), "x.pdf"); !errors.Is(err, ErrDownloadBusy) {
		t.Errorf("expected ErrDownloadBusy, got %v", err)
	}
}
