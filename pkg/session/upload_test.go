package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "equipment.csv")
	content := "Type,Flowrate,Pressure,Temperature\nPump,10,2,80\nValve,12,3,85\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func uploaderFor(baseURL string) *Uploader {
	client := api.New(api.Config{BaseURL: baseURL, Token: "tok", Timeout: 5 * time.Second})
	return NewUploader(func() *api.Client { return client }, nil)
}

func TestUploadNoFileSelected(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	u := uploaderFor(srv.URL)
	_, err := u.Upload(context.Background(), "")
	if !errors.Is(err, ErrNoFileSelected) {
		t.Fatalf("expected ErrNoFileSelected, got %v", err)
	}
	if requests != 0 {
		t.Errorf("local validation must not issue a request, saw %d", requests)
	}
}

func TestUploadSuccessFansOutOneInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"total_equipment": 12,
			"average_flowrate": 50.2,
			"average_pressure": 3.1,
			"average_temperature": 88.0,
			"equipment_type_distribution": {"Pump": 5, "Valve": 7}
		}`))
	}))
	defer srv.Close()

	u := uploaderFor(srv.URL)

	var summarySeen, chartSeen *api.UploadResult
	u.Subscribe(func(r *api.UploadResult) { summarySeen = r })
	u.Subscribe(func(r *api.UploadResult) { chartSeen = r })

	result, err := u.Upload(context.Background(), writeCSV(t))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if summarySeen != result || chartSeen != result {
		t.Error("summary and chart listeners must observe the same result instance")
	}
	if u.Latest() != result {
		t.Error("Latest must return the published result")
	}
	if result.TotalEquipment != 12 || len(result.TypeDistribution) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestUploadFailureKeepsPreviousResult(t *testing.T) {
	failNext := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failNext {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "CSV contains invalid numeric values"}`))
			return
		}
		_, _ = w.Write([]byte(`{"total_equipment": 4, "equipment_type_distribution": {"Pump": 4}}`))
	}))
	defer srv.Close()

	u := uploaderFor(srv.URL)
	path := writeCSV(t)

	first, err := u.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	failNext = true
	_, err = u.Upload(context.Background(), path)
	if err == nil {
		t.Fatal("expected second upload to fail")
	}
	// Front-ends surface this message as-is; it must carry the prefix once.
	if got := strings.Count(err.Error(), "upload failed"); got != 1 {
		t.Errorf("expected a single 'upload failed' prefix, got %d in %q", got, err)
	}
	if u.Latest() != first {
		t.Error("failed upload must leave the previous result untouched")
	}
}

func TestUploadFailureKeepsSelectionForRetry(t *testing.T) {
	failNext := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failNext {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"total_equipment": 2, "equipment_type_distribution": {"Valve": 2}}`))
	}))
	defer srv.Close()

	u := uploaderFor(srv.URL)
	path := writeCSV(t)

	if _, err := u.Upload(context.Background(), path); err == nil {
		t.Fatal("expected first upload to fail")
	}
	if u.LastPath() != path {
		t.Fatalf("failed upload must keep the selected file, got %q", u.LastPath())
	}

	failNext = false
	res, err := u.Upload(context.Background(), u.LastPath())
	if err != nil {
		t.Fatalf("retry with kept selection failed: %v", err)
	}
	if res.TotalEquipment != 2 {
		t.Errorf("unexpected retry result: %+v", res)
	}
}

func TestUploadFirstFailureLeavesNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := uploaderFor(srv.URL)
	if _, err := u.Upload(context.Background(), writeCSV(t)); err == nil {
		t.Fatal("expected upload to fail")
	}
	if u.Latest() != nil {
		t.Errorf("expected no result before the first success, got %+v", u.Latest())
	}
}

func TestUploadBusyGuard(t *testing.T) {
	u := uploaderFor("http://unused")
	u.mu.Lock()
	u.busy = true
	u.mu.Unlock()

	if _, err := u.Upload(context.Background(), "some.csv"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestUploadMissingLocalFile(t *testing.T) {
	u := uploaderFor("http://unused")
	if _, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for unreadable file")
	}
}
