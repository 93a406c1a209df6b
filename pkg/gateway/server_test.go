package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"

	"ongoing/pkg/admin"
	"ongoing/pkg/commands"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
	"ongoing/pkg/state"
)

func newTestServer(t *testing.T, secret string) (*Server, *admin.Service) {
	t.Helper()

	log := logger.NewNop()
	kv, err := state.NewFileStore(log, filepath.Join(t.TempDir(), "rules.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	svc := admin.New(log, rules.NewStore(log, kv, "#news"), nil)

	registry := commands.NewRegistry()
	if err := registry.Register(commands.OngoingCommand("ongoing", svc)); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Gateway.JWTSecret = secret
	return NewServer(cfg, log, svc, registry, nil), svc
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal payload %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decode(t, rec); body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHandleStatus_ReturnsStats(t *testing.T) {
	s, svc := newTestServer(t, "")
	if _, err := svc.AddFilter(context.Background(), "Kantai"); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := s.handleStatus(c); err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	payload := decode(t, rec)
	for _, key := range []string{"version", "commit", "build_time", "uptime", "uptime_seconds", "channels", "stats"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in payload, got: %v", key, payload)
		}
	}
	stats, _ := payload["stats"].(map[string]interface{})
	if stats["channel"] != "#news" || stats["filters"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestHandleRules_UsesOneBasedFilterIDs(t *testing.T) {
	s, svc := newTestServer(t, "")
	ctx := context.Background()
	if _, err := svc.AddBot(ctx, "KareRaisu", `SEND\s([0-9]+)`); err != nil {
		t.Fatalf("AddBot: %v", err)
	}
	for _, f := range []string{"A", "B"} {
		if _, err := svc.AddFilter(ctx, f); err != nil {
			t.Fatalf("AddFilter: %v", err)
		}
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/rules", nil), rec)
	if err := s.handleRules(c); err != nil {
		t.Fatalf("handleRules: %v", err)
	}

	var body struct {
		Channel string              `json:"channel"`
		Bots    []admin.BotEntry    `json:"bots"`
		Filters []admin.FilterEntry `json:"filters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Channel != "#news" || len(body.Bots) != 1 || body.Bots[0].Name != "KareRaisu" {
		t.Fatalf("unexpected rules %+v", body)
	}
	if len(body.Filters) != 2 || body.Filters[0].ID != 1 || body.Filters[1].ID != 2 || body.Filters[1].Pattern != "B" {
		t.Fatalf("unexpected filters %+v", body.Filters)
	}
}

func TestHandleCommand(t *testing.T) {
	s, svc := newTestServer(t, "")

	post := func(body string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code, decode(t, rec)
	}

	code, body := post(`{"command":"ongoing add_filter Kantai Collection"}`)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("add_filter: %d %v", code, body)
	}
	filters, _ := svc.ListFilters(context.Background())
	if len(filters) != 1 || filters[0].Pattern != "Kantai Collection" {
		t.Fatalf("filter not stored: %v", filters)
	}

	code, body = post(`{"command":"ongoing del_filter x"}`)
	if code != http.StatusOK || body["ok"] != false || body["output"] != "Invalid filter ID x." {
		t.Fatalf("del_filter: %d %v", code, body)
	}

	code, _ = post(`{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty command, got %d", code)
	}
}

func TestAPIRequiresTokenWhenSecretSet(t *testing.T) {
	const secret = "test-secret"
	s, _ := newTestServer(t, secret)

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatal("expected request without token to be rejected")
	}

	bad, err := GenerateToken("other-secret", "tester", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatal("expected token signed with another secret to be rejected")
	}

	token, err := GenerateToken(secret, "tester", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", rec.Code, rec.Body.String())
	}

	// Health stays public.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health should not need a token, got %d", rec.Code)
	}
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	if _, err := GenerateToken(" ", "x", time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
