package transfer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecmwf/ecmwf-api-client/internal/config"
	"github.com/ecmwf/ecmwf-api-client/internal/core/api"
	"github.com/ecmwf/ecmwf-api-client/internal/core/job"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
)

func newRetriever(t *testing.T, handler http.Handler) (*Retriever, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := config.Credentials{URL: srv.URL, Key: "k", Email: "e@example.int"}
	client := api.NewClient(creds, config.Settings{Timeout: 5 * time.Second}, logsink.Discard())
	return NewRetriever(client, logsink.Discard()), srv
}

func TestDownload_FullTransfer(t *testing.T) {
	payload := bytes.Repeat([]byte("grib"), 256)
	r, srv := newRetriever(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(payload)
	}))

	dest := filepath.Join(t.TempDir(), "out.grib")
	j := &job.Job{ID: "j1", Result: &job.Result{Location: srv.URL + "/result", Size: int64(len(payload))}}

	written, err := r.Download(context.Background(), j, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != int64(len(payload)) {
		t.Errorf("expected %d bytes written, got %d", len(payload), written)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("file content mismatch")
	}
}

func TestDownload_ShortTransferIsIncomplete(t *testing.T) {
	payload := []byte("only part of the fil") // one byte short
	r, srv := newRetriever(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(payload)
	}))

	dest := filepath.Join(t.TempDir(), "out.grib")
	j := &job.Job{ID: "j2", Result: &job.Result{Location: srv.URL + "/result", Size: int64(len(payload)) + 1}}

	written, err := r.Download(context.Background(), j, dest)

	var inc *IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if inc.Written != int64(len(payload)) || inc.Expected != int64(len(payload))+1 {
		t.Errorf("unexpected counts: %+v", inc)
	}
	if written != int64(len(payload)) {
		t.Errorf("expected %d reported, got %d", len(payload), written)
	}
	if j.Offset != int64(len(payload)) {
		t.Errorf("expected offset advanced for resume, got %d", j.Offset)
	}
}

func TestDownload_ResumesFromOffset(t *testing.T) {
	full := []byte("0123456789")
	var gotRange string
	r, srv := newRetriever(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotRange = req.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(full[4:])
	}))

	dest := filepath.Join(t.TempDir(), "out.grib")
	if err := os.WriteFile(dest, full[:4], 0o644); err != nil {
		t.Fatal(err)
	}

	j := &job.Job{
		ID:     "j3",
		Offset: 4,
		Result: &job.Result{Location: srv.URL + "/result", Size: int64(len(full))},
	}

	written, err := r.Download(context.Background(), j, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRange != "bytes=4-" {
		t.Errorf("expected ranged request, got %q", gotRange)
	}
	if written != int64(len(full)) {
		t.Errorf("expected total %d, got %d", len(full), written)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("expected %q on disk, got %q", full, got)
	}
}

func TestDownload_NoResult(t *testing.T) {
	r, _ := newRetriever(t, http.NotFoundHandler())

	_, err := r.Download(context.Background(), &job.Job{ID: "j4"}, filepath.Join(t.TempDir(), "x"))
	if err == nil {
		t.Fatal("expected an error for a job without a result")
	}
}
