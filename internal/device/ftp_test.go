package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/c64u/internal/trace"
)

type fakeFTP struct {
	failDownload bool
}

func (f *fakeFTP) List(context.Context, string) ([]FTPEntry, error) {
	return []FTPEntry{{Name: "game.d64", Size: 174848}}, nil
}

func (f *fakeFTP) Download(context.Context, string) ([]byte, error) {
	if f.failDownload {
		return nil, errors.New("550 not found")
	}
	return []byte{0x01}, nil
}

func (f *fakeFTP) Upload(context.Context, string, []byte) error { return nil }
func (f *fakeFTP) Delete(context.Context, string) error         { return nil }

func TestTracedFTP_RecordsOps(t *testing.T) {
	rec := trace.NewRecorder(trace.WithLogger(testLogger()))
	ftp := NewTracedFTP(&fakeFTP{}, rec)

	ctx := context.Background()
	_, err := ftp.List(ctx, "/Usb0/games")
	require.NoError(t, err)
	require.NoError(t, ftp.Upload(ctx, "/Usb0/games/new.d64", []byte{1}))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, trace.EventFtpOp, events[0].Type)
	assert.Equal(t, "list", events[0].Data["operation"])
	assert.Equal(t, "/Usb0/games", events[0].Data["path"])
	assert.Equal(t, "ok", events[0].Data["result"])
	assert.Equal(t, "upload", events[1].Data["operation"])
}

func TestTracedFTP_RecordsFailures(t *testing.T) {
	rec := trace.NewRecorder(trace.WithLogger(testLogger()))
	ftp := NewTracedFTP(&fakeFTP{failDownload: true}, rec)

	_, err := ftp.Download(context.Background(), "/Usb0/missing.d64")
	require.Error(t, err)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "download", events[0].Data["operation"])
	assert.Contains(t, events[0].Data["error"], "550")
	assert.NotContains(t, events[0].Data, "result")
}

func TestTracedFTP_AttributesToActiveAction(t *testing.T) {
	rec := trace.NewRecorder(trace.WithLogger(testLogger()))
	ftp := NewTracedFTP(&fakeFTP{}, rec)
	action := rec.NewAction("browse disks", trace.OriginUser, "")

	err := rec.Run(context.Background(), action, func(ctx context.Context) error {
		_, err := ftp.List(ctx, "/Usb0")
		return err
	})
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, action.CorrelationID, events[1].CorrelationID)
}
