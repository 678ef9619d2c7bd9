package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boxbuddy/boxbuddy-core/internal/access"
	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/clock"
	"github.com/boxbuddy/boxbuddy-core/internal/device"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/config"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/logging"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// newSecureFixture builds a server requiring JWT bearer tokens.
func newSecureFixture(t *testing.T) (*httptest.Server, *device.Registry) {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")

	recorder := audit.NewRecorder(&auditRepo{}, clk)
	registry := device.NewRegistry(newDeviceRepo(), clk)
	registry.SetAuditor(recorder)
	ledger := access.NewLedger(newCodeRepo(), clk, access.RegistryDirectory{Registry: registry}, time.Second)

	srv, err := New(Deps{
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testJWTSecret}},
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
	return ts, registry
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestAuth_RequiresBearerToken(t *testing.T) {
	ts, _ := newSecureFixture(t)

	resp, err := http.Get(ts.URL + "/api/v1/devices")
	if err != nil {
		t.Fatalf("GET /devices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_ValidTokenIdentifiesActor(t *testing.T) {
	ts, registry := newSecureFixture(t)

	token := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub":  "user-1",
		"name": "alice",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	})

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/devices",
		strings.NewReader(`{"name":"Porch Box","variant":"standard"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /devices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var dev device.Device
	if err := json.NewDecoder(resp.Body).Decode(&dev); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if _, err := registry.Get(context.Background(), dev.ID); err != nil {
		t.Errorf("device not in registry: %v", err)
	}
}

func TestAuth_RejectsWrongSignature(t *testing.T) {
	ts, _ := newSecureFixture(t)

	token := signToken(t, "wrong-secret-wrong-secret-wrong!", jwt.MapClaims{
		"name": "mallory",
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /devices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_RejectsExpiredToken(t *testing.T) {
	ts, _ := newSecureFixture(t)

	token := signToken(t, testJWTSecret, jwt.MapClaims{
		"name": "alice",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /devices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_InsecureModeUsesActorHeader(t *testing.T) {
	f := newFixture(t)
	dev := f.createDevice(t, "Porch Box", "standard")
	f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/lock", "", nil)

	var result struct {
		Entries []struct {
			Actor string `json:"actor"`
		} `json:"entries"`
	}
	f.do(t, http.MethodGet, "/api/v1/audit?kind=action", "", &result)
	if len(result.Entries) != 1 || result.Entries[0].Actor != "alice" {
		t.Errorf("entries = %v, want one by alice", result.Entries)
	}
}

func TestTicketStore(t *testing.T) {
	store := newTicketStore()
	store.tickets["tick"] = ticketEntry{actor: "alice", expiresAt: time.Now().Add(time.Minute)}

	entry, ok := store.validate("tick")
	if !ok || entry.actor != "alice" {
		t.Fatalf("validate = (%+v, %t)", entry, ok)
	}

	// Single use.
	if _, ok := store.validate("tick"); ok {
		t.Error("ticket validated twice")
	}

	store.tickets["old"] = ticketEntry{expiresAt: time.Now().Add(-time.Minute)}
	if _, ok := store.validate("old"); ok {
		t.Error("expired ticket validated")
	}

	store.tickets["stale"] = ticketEntry{expiresAt: time.Now().Add(-time.Minute)}
	store.cleanExpired()
	if len(store.tickets) != 0 {
		t.Errorf("tickets after clean = %d, want 0", len(store.tickets))
	}
}
