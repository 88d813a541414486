package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePayload_StripsTimingKeys(t *testing.T) {
	in := map[string]any{
		"version":    "3.12",
		"timestamp":  "2026-08-25T10:00:00Z",
		"durationMs": 42,
		"elapsed":    1.5,
		"uptime":     99,
		"nested": map[string]any{
			"startedAt": "2026-08-25T10:00:00Z",
			"value":     7,
		},
	}

	out := NormalizePayload(in).(map[string]any)
	assert.Equal(t, map[string]any{
		"version": "3.12",
		"nested":  map[string]any{"value": 7},
	}, out)
}

func TestNormalizePayload_RedactsVolatileIdentifiers(t *testing.T) {
	in := map[string]any{
		"sessionId": "a81bc81b-dead-4e5d-abff-90865d1e13b1",
		"requestId": 17,
		"port":      4664,
		"volume":    3,
		"name":      "keep me",
	}

	out := NormalizePayload(in).(map[string]any)
	assert.Equal(t, redacted, out["sessionId"])
	assert.Equal(t, redacted, out["requestId"])
	assert.Equal(t, redacted, out["port"])
	assert.Equal(t, redacted, out["volume"])
	assert.Equal(t, "keep me", out["name"])
}

func TestNormalizePayload_RedactsHostsAndPaths(t *testing.T) {
	out := NormalizePayload(map[string]any{
		"message": "connect to 192.168.1.64:8080 failed",
		"local":   "listening on localhost",
		"file":    "saved under /Users/dev/traces/run1.json",
	}).(map[string]any)

	assert.Equal(t, "connect to "+redacted+" failed", out["message"])
	assert.Equal(t, "listening on "+redacted, out["local"])
	assert.Equal(t, "saved under "+redacted, out["file"])
}

func TestNormalizePayload_Idempotent(t *testing.T) {
	in := map[string]any{
		"url":       "http://127.0.0.1:8080/v1/machine:readmem?length=3&address=00A0",
		"sessionId": "s-1",
		"timestamp": "2026-08-25T10:00:00Z",
		"body": map[string]any{
			"path": "/home/dev/disk.d64",
			"list": []any{"10.0.0.1:80", map[string]any{"port": 21}},
		},
	}

	once := NormalizePayload(in)
	twice := NormalizePayload(once)
	assert.Equal(t, once, twice, "normalization is a projection")
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://c64u/v1/info", "/v1/info"},
		{"https://127.0.0.1:8080/v1/drives", "/v1/drives"},
		{"/v1/machine:readmem?length=3&address=00A0", "/v1/machine:readmem?address=00A0&length=3"},
		{"/v1/info", "/v1/info"},
		{"http://c64u", "/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeURL(tc.in), tc.in)
		assert.Equal(t, tc.want, NormalizeURL(tc.want), "idempotent: %s", tc.want)
	}
}
