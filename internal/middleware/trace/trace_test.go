package trace

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fincontrol/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.5" }, log.New(cfg))

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/home", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != len("req_")+36 {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header = %q", rr.Header().Get("X-Request-ID"))
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=418") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("log = %s", out)
	}
	if m := m.GetMetrics(); m.TotalRequests != 1 || m.ServerErrors != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Fatalf("id = %q", id)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
