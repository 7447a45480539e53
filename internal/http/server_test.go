package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/services"
	"fincontrol/internal/session"
)

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

// fakeAPI is a minimal stand-in for the remote finance API.
type fakeAPI struct {
	mu       sync.Mutex
	created  []map[string]any
	attached []any
	revoked  atomic.Bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"user":{"id":7,"name":"Ana","email":"ana@example.com"},"token":"tok"}`)
	})
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user":{"id":8,"name":"bia","email":"bia@example.com"},"token":"tok2"}`)
	})
	mux.HandleFunc("GET /api/transactions/user/7", func(w http.ResponseWriter, r *http.Request) {
		if f.revoked.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"data":[
			{"id":1,"value":"1000.00","type":"RECEITA","description":"Salário","date":"2024-05-01T00:00:00.000Z","tags":[{"id":3,"name":"Casa"}]},
			{"id":2,"value":"250.5","type":"DESPESA","description":"Mercado","date":"2024-05-03","tags":[]}
		]}`)
	})
	mux.HandleFunc("GET /api/tags/user/7", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":3,"name":"Casa","_count":{"transactions":1}},{"id":4,"name":"Lazer"}]}`)
	})
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Transaction map[string]any `json:"transaction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode create: %v", err)
		}
		f.mu.Lock()
		f.created = append(f.created, body.Transaction)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("POST /api/transactions/{id}/tags", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TagIDs []any `json:"tag_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.attached = append(f.attached, body.TagIDs...)
		f.mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("DELETE /api/tags/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type fakeExporter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExporter) ExportTransactions(ctx context.Context, user core.User, txs []core.Transaction, stats core.SummaryStatistics) (int, error) {
	f.calls.Add(1)
	return len(txs) + 1, f.err
}

type testEnv struct {
	srv *Server
	api *fakeAPI
}

func newTestServer(t *testing.T, exporter Exporter) *testEnv {
	t.Helper()
	fake := &fakeAPI{}
	remote := httptest.NewServer(fake.handler(t))
	t.Cleanup(remote.Close)

	logger := quietLogger()
	client := api.NewClient(api.Options{
		BaseURL:    remote.URL,
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
		Logger:     logger,
	})
	dashboard := services.NewDashboardService(client, logger)
	deps := Deps{
		Auth:               client,
		Sessions:           session.NewManager(session.NewMemoryStore(time.Minute), time.Hour, false, logger),
		Dashboard:          dashboard,
		Transactions:       services.NewTransactionService(client, dashboard, nil, logger),
		Tags:               services.NewTagService(client, dashboard, nil, logger),
		Users:              services.NewUserService(client, dashboard, nil, logger),
		Checks:             []ReadinessCheck{{Name: "api", Check: client.Ping}},
		RateLimitPerMinute: 600,
		Logger:             logger,
	}
	if exporter != nil {
		deps.Exporter = exporter
	}
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, api: fake}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// login signs in as the fake API user and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rr := e.do(formRequest(http.MethodPost, "/login", url.Values{"email": {"Ana@Example.com"}, "password": {"secret"}}))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/home" {
		t.Fatalf("login status=%d location=%q body=%s", rr.Code, rr.Header().Get("Location"), rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set session cookie")
	return nil
}

func TestPublicPages(t *testing.T) {
	env := newTestServer(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Entrar") {
		t.Fatalf("index body missing heading")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing: %v", rr.Header())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("request id header missing")
	}

	for _, path := range []string{"/register", "/healthz", "/readyz", "/static/app.css"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{"http_requests_total", "dashboard_shared_fetches_total", "amount_anomalies_total", "suspicious_requests_total"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestPrivatePagesRequireSession(t *testing.T) {
	env := newTestServer(t, nil)

	for _, path := range []string{"/home", "/transactions", "/tags", "/users", "/ui/dashboard-stats"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
			t.Errorf("%s: status=%d location=%q", path, rr.Code, rr.Header().Get("Location"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/dashboard-stats", nil)
	req.Header.Set("HX-Request", "true")
	rr := env.do(req)
	if rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("htmx request not redirected: %v", rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "forged"})
	if rr := env.do(req); rr.Code != http.StatusSeeOther {
		t.Fatalf("unknown session id accepted: %d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestServer(t, nil)

	rr := env.do(formRequest(http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "password": {"wrong"}}))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "E-mail ou senha inválidos") {
		t.Fatalf("missing error message: %s", rr.Body.String())
	}

	rr = env.do(formRequest(http.MethodPost, "/login", url.Values{"email": {""}}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty form status=%d", rr.Code)
	}

	cookie := env.login(t)
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Header().Get("Location") != "/home" {
		t.Fatalf("logged-in visitor not sent home: %d", rr.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"bad email", url.Values{"email": {"nope"}, "password": {"secret1"}, "confirm": {"secret1"}}, http.StatusUnprocessableEntity},
		{"short password", url.Values{"email": {"bia@example.com"}, "password": {"abc"}, "confirm": {"abc"}}, http.StatusUnprocessableEntity},
		{"mismatch", url.Values{"email": {"bia@example.com"}, "password": {"secret1"}, "confirm": {"secret2"}}, http.StatusUnprocessableEntity},
		{"ok", url.Values{"email": {"bia@example.com"}, "password": {"secret1"}, "confirm": {"secret1"}}, http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(formRequest(http.MethodPost, "/register", tt.form))
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestHomeRendersStatistics(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("home status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"R$ 749,50", "R$ 1.000,00", "R$ 250,50", "Salário", "Olá, Ana"} {
		if !strings.Contains(body, want) {
			t.Errorf("home missing %q", want)
		}
	}
	if strings.Contains(body, "Exportar") {
		t.Error("export offered without exporter")
	}

	req = httptest.NewRequest(http.MethodGet, "/ui/dashboard-stats", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rr = env.do(req)
	if !strings.Contains(rr.Body.String(), `id="dashboard-stats"`) || strings.Contains(rr.Body.String(), "<html") {
		t.Fatalf("stats partial = %s", rr.Body.String())
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := formRequest(http.MethodPost, "/transactions", url.Values{
		"description": {"Mercado"}, "amount": {"abc"}, "kind": {"DESPESA"}, "date": {"2024-05-03"},
	})
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `data-field="amount"`) {
		t.Fatalf("missing field error: %s", rr.Body.String())
	}

	req = formRequest(http.MethodPost, "/transactions", url.Values{
		"description": {"<b>Feira</b>"}, "amount": {"12,50"}, "kind": {"despesa"}, "date": {"2024-05-04"},
	})
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rr = env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventTransactionChanged, EventDashboardRefresh} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %s: %s", want, trigger)
		}
	}

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	if len(env.api.created) != 1 {
		t.Fatalf("created = %v", env.api.created)
	}
	got := env.api.created[0]
	if got["description"] != "Feira" || got["value"] != "12.50" || got["type"] != "DESPESA" || got["date"] != "2024-05-04T00:00:00" {
		t.Fatalf("payload = %v", got)
	}
}

func TestPlainFormPostRedirects(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := formRequest(http.MethodPost, "/transactions/1/tags", url.Values{"tag_ids": {"3", "4"}})
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/transactions" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	if len(env.api.attached) != 2 {
		t.Fatalf("attached = %v", env.api.attached)
	}
}

func TestUnauthorizedAPIEndsSession(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)
	env.api.revoked.Store(true)

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("session cookie not cleared")
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusSeeOther {
		t.Fatalf("ended session still valid: %d", rr.Code)
	}
}

func TestTagsSearchPartial(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/tags?q=LAZ", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "tag-rows")
	req.AddCookie(cookie)
	rr := env.do(req)
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.HasPrefix(strings.TrimSpace(body), "<tbody") {
		t.Fatalf("status=%d body=%s", rr.Code, body)
	}
	if !strings.Contains(body, "Lazer") || strings.Contains(body, "Casa") {
		t.Fatalf("filter not applied: %s", body)
	}
}

func TestDeleteMissingTag(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/tags/404/delete", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCreateTagRejectsBlankName(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := formRequest(http.MethodPost, "/tags", url.Values{"name": {"  <i></i> "}})
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)
	req := httptest.NewRequest(http.MethodPost, "/transactions/export", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusNotFound {
		t.Fatalf("unconfigured export status=%d", rr.Code)
	}

	exp := &fakeExporter{}
	env = newTestServer(t, exp)
	cookie = env.login(t)
	req = httptest.NewRequest(http.MethodPost, "/transactions/export", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusOK || exp.calls.Load() != 1 {
		t.Fatalf("status=%d calls=%d", rr.Code, exp.calls.Load())
	}

	exp.err = errors.New("quota exceeded")
	req = httptest.NewRequest(http.MethodPost, "/transactions/export", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusBadGateway {
		t.Fatalf("failing export status=%d", rr.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestServer(t, nil)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Header().Get("Location") != "/" {
		t.Fatalf("logout location=%q", rr.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusSeeOther {
		t.Fatalf("session survived logout: %d", rr.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	env := newTestServer(t, nil)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestParseTemplates(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr bool
	}{
		{"valid", fstest.MapFS{"templates/a.html": {Data: []byte(`{{define "a"}}{{brl .}}{{end}}`)}}, false},
		{"broken syntax", fstest.MapFS{"templates/a.html": {Data: []byte(`{{if}}`)}}, true},
		{"unknown func", fstest.MapFS{"templates/a.html": {Data: []byte(`{{nope .}}`)}}, true},
		{"no templates", fstest.MapFS{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTemplates(tt.fsys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTagColorIsStable(t *testing.T) {
	if tagColor("42") != tagColor("42") {
		t.Fatal("tagColor not deterministic")
	}
	seen := map[string]bool{}
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
		c := tagColor(id)
		if !strings.HasPrefix(c, "#") {
			t.Fatalf("tagColor(%s) = %q", id, c)
		}
		seen[c] = true
	}
	if len(seen) < 2 {
		t.Fatal("tagColor maps every id to one colour")
	}
}

func TestAmountBRL(t *testing.T) {
	tests := []struct{ raw, want string }{
		{"1234.5", "R$ 1.234,50"},
		{"-3", "-R$ 3,00"},
		{"n/a", "n/a"},
	}
	for _, tt := range tests {
		if got := amountBRL(tt.raw); got != tt.want {
			t.Errorf("amountBRL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
