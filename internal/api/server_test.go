package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyncbridge/cyncbridge/internal/auth"
	"github.com/cyncbridge/cyncbridge/internal/config"
	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/logging"
)

func httpBody(s string) io.Reader {
	return strings.NewReader(s)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := device.New()
	reg.LoadDevices([]*device.Device{device.NewDevice(7, 0, "lamp", device.KindLight)})

	s, err := New(Deps{
		Config:   config.APIConfig{Enabled: true},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: "a-sufficiently-long-test-secret-value"}},
		Logger:   logging.Default(),
		Registry: reg,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListDevicesReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetDeviceNotFoundReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/999", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPostDeviceCommandRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/7/commands", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rec.Code)
	}
}

func TestPostDeviceCommandAcceptsValidToken(t *testing.T) {
	s := newTestServer(t)
	token, err := auth.IssueToken(s.secret, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/7/commands",
		httpBody(`{"on":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("expected token to be accepted, got 401")
	}
}
