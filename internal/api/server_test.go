package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boxbuddy/boxbuddy-core/internal/access"
	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/clock"
	"github.com/boxbuddy/boxbuddy-core/internal/device"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/config"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/logging"
)

// In-memory repositories backing the full handler stack in tests.

type deviceRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device
}

func newDeviceRepo() *deviceRepo {
	return &deviceRepo{devices: make(map[string]*device.Device)}
}

func (m *deviceRepo) List(ctx context.Context) ([]device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *deviceRepo) GetByID(ctx context.Context, id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *deviceRepo) Create(ctx context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *deviceRepo) Update(ctx context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; !ok {
		return device.ErrDeviceNotFound
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *deviceRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

type codeRepo struct {
	mu    sync.Mutex
	codes map[string]*access.Code
}

func newCodeRepo() *codeRepo {
	return &codeRepo{codes: make(map[string]*access.Code)}
}

func (m *codeRepo) List(ctx context.Context) ([]access.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]access.Code, 0, len(m.codes))
	for _, c := range m.codes {
		out = append(out, *c.DeepCopy())
	}
	return out, nil
}

func (m *codeRepo) Create(ctx context.Context, c *access.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.ID] = c.DeepCopy()
	return nil
}

func (m *codeRepo) Update(ctx context.Context, c *access.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[c.ID]; !ok {
		return access.ErrCodeNotFound
	}
	m.codes[c.ID] = c.DeepCopy()
	return nil
}

type auditRepo struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *auditRepo) Create(ctx context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *auditRepo) List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var matched []audit.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []audit.Entry{}
	}

	return &audit.ListResult{Entries: matched, Total: total, Limit: limit, Offset: filter.Offset}, nil
}

// fixture wires the full stack behind an httptest server: real registry,
// ledger and recorder over in-memory repositories and a fake clock.
type fixture struct {
	ts       *httptest.Server
	server   *Server
	registry *device.Registry
	ledger   *access.Ledger
	recorder *audit.Recorder
	clk      *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")

	recorder := audit.NewRecorder(&auditRepo{}, clk)

	registry := device.NewRegistry(newDeviceRepo(), clk)
	registry.SetAuditor(recorder)
	if err := registry.Load(context.Background()); err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	ledger := access.NewLedger(newCodeRepo(), clk, access.RegistryDirectory{Registry: registry}, time.Second)
	ledger.SetAuditor(recorder)
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("loading ledger: %v", err)
	}

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:       config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{JWT: config.JWTConfig{AllowInsecure: true}},
		Logger:   logger,
		Registry: registry,
		Ledger:   ledger,
		Audit:    recorder,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	srv.hub = NewHub(srv.wsCfg, logger)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, server: srv, registry: registry, ledger: ledger, recorder: recorder, clk: clk}
}

// do issues a request with the test actor header and decodes the JSON
// response into out (when non-nil).
func (f *fixture) do(t *testing.T, method, path, body string, out any) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "alice")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp
}

// createDevice provisions a device through the API and returns it.
func (f *fixture) createDevice(t *testing.T, name, variant string) device.Device {
	t.Helper()

	var dev device.Device
	resp := f.do(t, http.MethodPost, "/api/v1/devices",
		`{"name":"`+name+`","variant":"`+variant+`"}`, &dev)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create device status = %d, want 201", resp.StatusCode)
	}
	return dev
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	// Health needs no auth header.
	resp, err := http.Get(f.ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}
