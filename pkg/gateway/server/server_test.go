package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fluentvoice/fluentvoice/pkg/auth"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/config"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

func testConfig(mode config.AuthMode) config.Config {
	return config.Config{
		Addr:                ":0",
		APIKey:              "test-key",
		AuthMode:            mode,
		SessionTTL:          time.Hour,
		SignupCreditSeconds: 300,
		HistoryLimit:        50,
		CORSAllowedOrigins:  map[string]struct{}{},
	}
}

type fakeAuthService struct {
	identity auth.Identity
}

func (f fakeAuthService) LoginURL(state string) (string, error) {
	return "https://auth.example.com/login?state=" + state, nil
}

func (f fakeAuthService) ExchangeCode(context.Context, string) (auth.Identity, error) {
	return f.identity, nil
}

func newTestServer(mode config.AuthMode) (*Server, *store.Memory) {
	mem := store.NewMemory()
	srv := New(Options{
		Config: testConfig(mode),
		Store:  mem,
		Auth:   fakeAuthService{identity: auth.Identity{UserID: "u1", Email: "a@example.com"}},
	})
	return srv, mem
}

func get(t *testing.T, ts *httptest.Server, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeDisabled)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := get(t, ts, "/healthz", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestServer_AvatarsArePublic(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeRequired)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := get(t, ts, "/v1/avatars", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out struct {
		Avatars []map[string]string `json:"avatars"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Avatars) == 0 {
		t.Fatal("empty avatar catalog")
	}
	for _, a := range out.Avatars {
		if _, leaked := a["SystemInstruction"]; leaked {
			t.Fatal("system instruction exposed to clients")
		}
	}
}

func TestServer_ProfileRequiresToken(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeRequired)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := get(t, ts, "/v1/profile", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", resp.StatusCode)
	}
	resp, _ = get(t, ts, "/v1/profile", "fvs_bogus")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d for bogus token, want 401", resp.StatusCode)
	}
}

func TestServer_CallbackIssuesUsableToken(t *testing.T) {
	srv, mem := newTestServer(config.AuthModeRequired)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := get(t, ts, "/auth/callback?code=abc", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status=%d body=%s", resp.StatusCode, body)
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	token := out["token"]
	if token == "" {
		t.Fatal("no token issued")
	}

	// First sign-in provisioned the profile with the signup allowance.
	resp, body = get(t, ts, "/v1/profile", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status=%d body=%s", resp.StatusCode, body)
	}
	var profile store.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.ID != "u1" || profile.CreditSeconds != 300 {
		t.Fatalf("profile=%+v", profile)
	}

	// The grant is once-only even if the user signs in again.
	_ = mem.UpdateCredits(context.Background(), "u1", 10)
	resp, body = get(t, ts, "/auth/callback?code=abc", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second callback status=%d", resp.StatusCode)
	}
	p, _ := mem.GetProfile(context.Background(), "u1")
	if p.CreditSeconds != 10 {
		t.Fatalf("credits=%d after re-login, want 10", p.CreditSeconds)
	}
	_ = body
}

func TestServer_SessionsListing(t *testing.T) {
	srv, mem := newTestServer(config.AuthModeDisabled)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	mem.SeedProfile(store.Profile{ID: "local", CreditSeconds: 100})
	_ = mem.AppendSessionRecord(context.Background(), &store.SessionRecord{
		UserID:       "local",
		AvatarName:   "Maya",
		OverallScore: 80,
	})

	resp, body := get(t, ts, "/v1/sessions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var out struct {
		Sessions []store.SessionRecord `json:"sessions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Sessions) != 1 || out.Sessions[0].OverallScore != 80 {
		t.Fatalf("sessions=%+v", out.Sessions)
	}
}

func TestServer_CheckoutDisabled(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeDisabled)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/checkout", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", resp.StatusCode)
	}
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeDisabled)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := get(t, ts, "/v1/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", resp.StatusCode)
	}
}

func TestServer_ReadyzDrains(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeDisabled)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := get(t, ts, "/readyz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d before draining", resp.StatusCode)
	}

	srv.SetDraining()
	resp, body := get(t, ts, "/readyz", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d while draining, want 503", resp.StatusCode)
	}
	if !strings.Contains(string(body), "draining") {
		t.Fatalf("body=%s, want draining issue", body)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeRequired)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Generate some traffic first so the counters have series.
	get(t, ts, "/healthz", "")
	get(t, ts, "/v1/profile", "")

	resp, body := get(t, ts, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	text := string(body)
	if !strings.Contains(text, "fluentvoice_requests_total") {
		t.Fatal("request counter not exported")
	}
	if !strings.Contains(text, "fluentvoice_auth_failures_total 1") {
		t.Fatalf("auth failure not counted:\n%s", text)
	}
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	srv, _ := newTestServer(config.AuthModeRequired)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	token := srv.Sessions().Issue(auth.Identity{UserID: "u1"})

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status=%d", resp.StatusCode)
	}

	resp, _ = get(t, ts, "/v1/profile", token)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d after logout, want 401", resp.StatusCode)
	}
}
