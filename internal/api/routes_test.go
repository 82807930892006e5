package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
	"github.com/kuilinga/terminal-gateway/internal/auth"
	"github.com/kuilinga/terminal-gateway/internal/liveness"
	"github.com/kuilinga/terminal-gateway/usecase"
)

type fakeCommands struct {
	err        error
	lastCaller usecase.Caller
	lastBulk   []string
}

func (f *fakeCommands) SendToDevice(ctx context.Context, caller usecase.Caller, deviceID string, command entities.CommandType) (*usecase.CommandReceipt, error) {
	f.lastCaller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.CommandReceipt{Published: true, DeviceID: deviceID, DeviceSerial: "SN-1", Command: string(command), CommandCode: "0x108090"}, nil
}

func (f *fakeCommands) SendCodeToDevice(ctx context.Context, caller usecase.Caller, deviceID, code string) (*usecase.CommandReceipt, error) {
	f.lastCaller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.CommandReceipt{Published: true, DeviceID: deviceID, CommandCode: code}, nil
}

func (f *fakeCommands) SendBulk(ctx context.Context, caller usecase.Caller, deviceIDs []string, command entities.CommandType) *usecase.BulkCommandResult {
	f.lastCaller = caller
	f.lastBulk = deviceIDs
	return &usecase.BulkCommandResult{Success: false, TotalDevices: len(deviceIDs), Successful: len(deviceIDs) - 1, Failed: 1}
}

type fakeLiveness struct {
	marked int
	err    error
}

func (f *fakeLiveness) CheckOnce(ctx context.Context) (int, error) { return f.marked, f.err }

func (f *fakeLiveness) Status() liveness.Status {
	return liveness.Status{Running: true, CheckIntervalSeconds: 60, OfflineTimeoutMinutes: 5}
}

type fakeBroker struct{ connected bool }

func (f fakeBroker) IsConnected() bool { return f.connected }

type testServer struct {
	echo     *echo.Echo
	commands *fakeCommands
	liveness *fakeLiveness
	tokens   *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		echo:     echo.New(),
		commands: &fakeCommands{},
		liveness: &fakeLiveness{marked: 2},
		tokens:   auth.NewTokenManager("test-secret"),
	}
	InitRoutes(s.echo, Dependencies{
		Commands: s.commands,
		Liveness: s.liveness,
		Broker:   fakeBroker{connected: true},
		Tokens:   s.tokens,
		Gatherer: prometheus.NewRegistry(),
		Logger:   zap.NewNop(),
	})
	return s
}

func (s *testServer) token(t *testing.T, org, role string) string {
	t.Helper()
	token, err := s.tokens.GenerateUserToken("user-1", org, role)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Invalid health body: %v", err)
	}
	if health.Status != "ok" || !health.MQTTConnected {
		t.Errorf("Unexpected health %+v", health)
	}

	if rec := s.do(http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected metrics endpoint, got %d", rec.Code)
	}
}

func TestOperatorAuth(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodGet, "/api/v1/devices/status-monitor", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/devices/status-monitor", "", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with invalid token, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/devices/status-monitor", "", s.token(t, "org-1", "admin")); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}
}

func TestSendCommand(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/devices/dev-1/command", `{"command":"REBOOT"}`, s.token(t, "org-1", "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var receipt usecase.CommandReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("Invalid receipt: %v", err)
	}
	if !receipt.Published || receipt.DeviceID != "dev-1" || receipt.Command != "reboot" {
		t.Errorf("Unexpected receipt %+v", receipt)
	}
	if s.commands.lastCaller.OrganizationID != "org-1" || s.commands.lastCaller.Elevated {
		t.Errorf("Unexpected caller %+v", s.commands.lastCaller)
	}

	s.do(http.MethodPost, "/api/v1/devices/dev-1/command", `{"command":"status"}`, s.token(t, "", auth.RoleSuperAdmin))
	if !s.commands.lastCaller.Elevated {
		t.Error("superadmin token should give an elevated caller")
	}

	if rec := s.do(http.MethodPost, "/api/v1/devices/dev-1/command", `{"command":"explode"}`, s.token(t, "org-1", "admin")); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for unknown command, got %d", rec.Code)
	}
}

func TestSendCommand_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{usecase.ErrTransportUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: devices/SN-1/command: timeout", usecase.ErrPublishFailed), http.StatusBadGateway},
		{usecase.ErrForbidden, http.StatusForbidden},
		{repositories.ErrDeviceNotFound, http.StatusNotFound},
		{usecase.ErrUnsupportedDelivery, http.StatusUnprocessableEntity},
		{usecase.ErrInvalidCode, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newTestServer(t)
			s.commands.err = tt.err

			rec := s.do(http.MethodPost, "/api/v1/devices/dev-1/command", `{"command":"reset"}`, s.token(t, "org-1", "admin"))
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestSendRawCommand(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/devices/dev-1/raw-command", `{"code":" 0x1080B0 "}`, s.token(t, "org-1", "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"command_code":"0x1080B0"`) {
		t.Errorf("Expected trimmed code in receipt, got %s", rec.Body.String())
	}
}

func TestBulkCommand(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "org-1", "admin")

	rec := s.do(http.MethodPost, "/api/v1/devices/bulk-command", `{"device_ids":["a","b","c"],"command":"sleep"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var result usecase.BulkCommandResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid result: %v", err)
	}
	if result.TotalDevices != 3 || result.Successful != 2 || result.Failed != 1 || result.Success {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(s.commands.lastBulk) != 3 {
		t.Errorf("Expected 3 targets forwarded, got %v", s.commands.lastBulk)
	}

	if rec := s.do(http.MethodPost, "/api/v1/devices/bulk-command", `{"device_ids":[],"command":"sleep"}`, token); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty targets, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/devices/bulk-command", `{"device_ids":["a"],"command":"nap"}`, token); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for unknown command, got %d", rec.Code)
	}
}

func TestStatusCheck(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "org-1", "admin")

	rec := s.do(http.MethodPost, "/api/v1/devices/status-check", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp StatusCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if !resp.Success || resp.MarkedOffline != 2 {
		t.Errorf("Unexpected response %+v", resp)
	}

	s.liveness.err = errors.New("db down")
	if rec := s.do(http.MethodPost, "/api/v1/devices/status-check", "", token); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when the sweep fails, got %d", rec.Code)
	}
}
