package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"evregistry/backend/libs/identity"
	"evregistry/backend/services/station-registry/internal/metrics"
)

type stubVerifier struct {
	claims *identity.Claims
	err    error
	calls  int
}

func (s *stubVerifier) Verify(string) (*identity.Claims, error) {
	s.calls++
	return s.claims, s.err
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Code
}

func TestSessionGuard(t *testing.T) {
	admin := true
	valid := &identity.Claims{Name: "A", IsAdmin: &admin}
	valid.Subject = "u-1"

	cases := []struct {
		name     string
		header   string
		verifier *stubVerifier
		status   int
		code     string
	}{
		{"missing", "", &stubVerifier{claims: valid}, http.StatusUnauthorized, "unauthenticated"},
		{"empty bearer", "Bearer ", &stubVerifier{claims: valid}, http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic abc", &stubVerifier{claims: valid}, http.StatusBadRequest, "invalid_token"},
		{"bad token", "Bearer abc", &stubVerifier{err: errors.New("bad signature")}, http.StatusBadRequest, "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := SessionGuard(tc.verifier, nil, zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/charging-stations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if called {
				t.Fatal("next handler must not run")
			}
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
			if code := decodeCode(t, rec); code != tc.code {
				t.Fatalf("code %q, want %q", code, tc.code)
			}
		})
	}
}

func TestSessionGuardStoresPrincipal(t *testing.T) {
	admin := true
	claims := &identity.Claims{Name: "A", Email: "a@x.com", IsAdmin: &admin}
	claims.Subject = "u-1"

	var got identity.Principal
	h := SessionGuard(&stubVerifier{claims: claims}, metrics.New(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("principal missing")
		}
		got = p
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)

	want := identity.Principal{Subject: "u-1", Name: "A", Email: "a@x.com", Role: identity.RoleAdmin}
	if got != want {
		t.Fatalf("principal %+v, want %+v", got, want)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000/"}, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatal("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
}

func TestCORSReflectAny(t *testing.T) {
	h := CORS(nil, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://anything.example" {
		t.Fatal("origin not reflected")
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	h := Chain(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		RequestLogger(zap.NewNop()),
		Recovery(zap.NewNop()),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
	if code := decodeCode(t, rec); code != "server_error" {
		t.Fatalf("code %q", code)
	}
}

func TestMetricsCountsPanickingRequests(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := Chain(mux, Recovery(zap.NewNop()), Metrics(m))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "GET /boom", "500")); got != 1 {
		t.Fatalf("expected the panicking request to be counted once, got %v", got)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mw("a"), mw("b")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "h" {
		t.Fatalf("order %v", order)
	}
}
