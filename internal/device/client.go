package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/c64u/internal/config"
	"github.com/roach88/c64u/internal/trace"
)

// Machine is the device contract the guarded operations and liveness
// checks depend on. Client implements it over HTTP; tests substitute
// fakes.
type Machine interface {
	// ReadMemory returns exactly length bytes starting at the hex
	// address, or an error. A short response is a ProtocolError.
	ReadMemory(ctx context.Context, addrHex string, length int) ([]byte, error)
	WriteMemoryBlock(ctx context.Context, addrHex string, data []byte) error
	MachinePause(ctx context.Context) error
	MachineResume(ctx context.Context) error
	MachineReset(ctx context.Context) error
	MachineReboot(ctx context.Context) error
}

// Client is the REST client for the C64 Ultimate HTTP API.
type Client struct {
	base   string
	target string // host portion, stamped on rest-call events
	http   *http.Client
	rec    *trace.Recorder
	logger *slog.Logger
}

// NewClient creates a client for cfg.BaseURL recording onto rec.
func NewClient(cfg config.Device, rec *trace.Recorder, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	target := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		target = u.Host
	}
	return &Client{
		base:   base,
		target: target,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		rec:    rec,
		logger: logger,
	}
}

// do issues one request and records the rest-call event, success or not.
// The recorded URL is origin-stripped with lexicographically sorted query
// parameters so traces compare stably across hosts and runs.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	rawURL := c.base + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)

	record := map[string]any{
		"method": method,
		"url":    NormalizeRequestURL(path, query),
		"target": c.target,
	}
	if len(body) > 0 {
		record["bodyBytes"] = len(body)
	}
	if err != nil {
		record["error"] = err.Error()
		c.rec.Record(ctx, trace.EventRestCall, record)
		c.logger.Error("device request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	record["status"] = resp.StatusCode
	c.rec.Record(ctx, trace.EventRestCall, record)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%s %s: device returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

// NormalizeRequestURL renders path plus query with parameters sorted
// lexicographically by key, the stable form trace comparison expects.
func NormalizeRequestURL(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(path)
	sb.WriteByte('?')
	first := true
	for _, k := range keys {
		vs := append([]string(nil), query[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if !first {
				sb.WriteByte('&')
			}
			first = false
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// ReadMemory reads exactly length bytes at the hex address.
func (c *Client) ReadMemory(ctx context.Context, addrHex string, length int) ([]byte, error) {
	query := url.Values{
		"address": {addrHex},
		"length":  {strconv.Itoa(length)},
	}
	resp, err := c.do(ctx, http.MethodGet, "/v1/machine:readmem", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("readmem %s: %w", addrHex, err)
	}
	if len(data) != length {
		return nil, protocolErrorf("readmem", "short read at %s: got %d bytes, want %d", addrHex, len(data), length)
	}
	return data, nil
}

// WriteMemoryBlock writes data starting at the hex address.
func (c *Client) WriteMemoryBlock(ctx context.Context, addrHex string, data []byte) error {
	query := url.Values{"address": {addrHex}}
	resp, err := c.do(ctx, http.MethodPost, "/v1/machine:writemem", query, data)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) machineOp(ctx context.Context, op string) error {
	resp, err := c.do(ctx, http.MethodPut, "/v1/machine:"+op, nil, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) MachinePause(ctx context.Context) error  { return c.machineOp(ctx, "pause") }
func (c *Client) MachineResume(ctx context.Context) error { return c.machineOp(ctx, "resume") }
func (c *Client) MachineReset(ctx context.Context) error  { return c.machineOp(ctx, "reset") }
func (c *Client) MachineReboot(ctx context.Context) error { return c.machineOp(ctx, "reboot") }

// Version returns the device firmware version payload.
func (c *Client) Version(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/v1/version")
}

// Info returns the device info payload.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/v1/info")
}

// ConfigCategories lists the configuration category names.
func (c *Client) ConfigCategories(ctx context.Context) ([]string, error) {
	payload, err := c.getJSON(ctx, "/v1/configs")
	if err != nil {
		return nil, err
	}
	raw, ok := payload["categories"].([]any)
	if !ok {
		return nil, protocolErrorf("configs", "response missing categories list")
	}
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// ConfigCategory returns the settings of one configuration category.
func (c *Client) ConfigCategory(ctx context.Context, category string) (map[string]any, error) {
	return c.getJSON(ctx, "/v1/configs/"+url.PathEscape(category))
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("GET %s: malformed response: %w", path, err)
	}
	return payload, nil
}
