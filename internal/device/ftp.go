package device

import (
	"context"

	"github.com/roach88/c64u/internal/trace"
)

// FTPEntry describes one remote file or directory.
type FTPEntry struct {
	Name string
	Size int64
	Dir  bool
}

// FTPClient is the contract consumed from the native FTP collaborator.
// The implementation lives outside this module; the core only depends on
// these operations.
type FTPClient interface {
	List(ctx context.Context, path string) ([]FTPEntry, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
}

// TracedFTP wraps an FTPClient so every operation records an ftp-op trace
// event under the active action.
type TracedFTP struct {
	inner FTPClient
	rec   *trace.Recorder
}

// NewTracedFTP wraps inner with trace recording onto rec.
func NewTracedFTP(inner FTPClient, rec *trace.Recorder) *TracedFTP {
	return &TracedFTP{inner: inner, rec: rec}
}

func (f *TracedFTP) record(ctx context.Context, operation, path, result string, err error) {
	data := map[string]any{
		"operation": operation,
		"path":      path,
	}
	if result != "" {
		data["result"] = result
	}
	if err != nil {
		data["error"] = err.Error()
	}
	f.rec.Record(ctx, trace.EventFtpOp, data)
}

func (f *TracedFTP) List(ctx context.Context, path string) ([]FTPEntry, error) {
	entries, err := f.inner.List(ctx, path)
	if err != nil {
		f.record(ctx, "list", path, "", err)
		return nil, err
	}
	f.record(ctx, "list", path, "ok", nil)
	return entries, nil
}

func (f *TracedFTP) Download(ctx context.Context, path string) ([]byte, error) {
	data, err := f.inner.Download(ctx, path)
	if err != nil {
		f.record(ctx, "download", path, "", err)
		return nil, err
	}
	f.record(ctx, "download", path, "ok", nil)
	return data, nil
}

func (f *TracedFTP) Upload(ctx context.Context, path string, data []byte) error {
	err := f.inner.Upload(ctx, path, data)
	if err != nil {
		f.record(ctx, "upload", path, "", err)
		return err
	}
	f.record(ctx, "upload", path, "ok", nil)
	return nil
}

func (f *TracedFTP) Delete(ctx context.Context, path string) error {
	err := f.inner.Delete(ctx, path)
	if err != nil {
		f.record(ctx, "delete", path, "", err)
		return err
	}
	f.record(ctx, "delete", path, "ok", nil)
	return nil
}
