package device

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/c64u/internal/config"
	"github.com/roach88/c64u/internal/trace"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *trace.Recorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Device
	cfg.BaseURL = srv.URL
	rec := trace.NewRecorder(trace.WithLogger(testLogger()))
	return NewClient(cfg, rec, testLogger()), rec
}

func TestClient_ReadMemory(t *testing.T) {
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/machine:readmem", r.URL.Path)
		assert.Equal(t, "00a0", r.URL.Query().Get("address"))
		assert.Equal(t, "3", r.URL.Query().Get("length"))
		_, _ = w.Write([]byte{1, 2, 3})
	}))

	data, err := c.ReadMemory(context.Background(), "00a0", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, trace.EventRestCall, events[0].Type)
	assert.Equal(t, "GET", events[0].Data["method"])
	// Recorded URL is origin-stripped with sorted query parameters.
	assert.Equal(t, "/v1/machine:readmem?address=00a0&length=3", events[0].Data["url"])
	assert.Equal(t, 200, events[0].Data["status"])
}

func TestClient_ReadMemory_ShortReadIsProtocolError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{1, 2})
	}))

	_, err := c.ReadMemory(context.Background(), "0000", 4096)
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
	assert.Contains(t, err.Error(), "short read")
}

func TestClient_WriteMemoryBlock(t *testing.T) {
	var gotBody []byte
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/machine:writemem", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
	}))

	require.NoError(t, c.WriteMemoryBlock(context.Background(), "0400", []byte{0xDE, 0xAD}))
	assert.Equal(t, []byte{0xDE, 0xAD}, gotBody)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Data["bodyBytes"])
}

func TestClient_MachineOpsUsePut(t *testing.T) {
	var methods []string
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
	}))

	ctx := context.Background()
	require.NoError(t, c.MachinePause(ctx))
	require.NoError(t, c.MachineResume(ctx))
	require.NoError(t, c.MachineReset(ctx))
	require.NoError(t, c.MachineReboot(ctx))

	assert.Equal(t, []string{"PUT", "PUT", "PUT", "PUT"}, methods)
	assert.Equal(t, []string{
		"/v1/machine:pause",
		"/v1/machine:resume",
		"/v1/machine:reset",
		"/v1/machine:reboot",
	}, paths)
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "machine busy", http.StatusConflict)
	}))

	err := c.MachinePause(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	// The failed call is still traced, with its status.
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 409, events[0].Data["status"])
}

func TestClient_TransportFailureRecorded(t *testing.T) {
	cfg := config.Default().Device
	cfg.BaseURL = "http://127.0.0.1:1" // nothing listens here
	rec := trace.NewRecorder(trace.WithLogger(testLogger()))
	c := NewClient(cfg, rec, testLogger())

	err := c.MachinePause(context.Background())
	require.Error(t, err)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Data["error"])
	assert.NotContains(t, events[0].Data, "status")
}

func TestClient_ConfigCategories(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/configs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"categories":["Audio Settings","Drive A"]}`))
	}))

	cats, err := c.ConfigCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Audio Settings", "Drive A"}, cats)
}

func TestNormalizeRequestURL_SortsQuery(t *testing.T) {
	got := NormalizeRequestURL("/v1/machine:readmem", url.Values{
		"length":  {"4096"},
		"address": {"d012"},
	})
	assert.Equal(t, "/v1/machine:readmem?address=d012&length=4096", got)

	assert.Equal(t, "/v1/info", NormalizeRequestURL("/v1/info", nil))
}
