package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/edgetether/tether/internal/gate"
	"github.com/edgetether/tether/internal/identity"
)

// admitGate evaluates against a resolver bound to the given address
func admitGate(boundIP string) *gate.Gate {
	resolver := identity.NewStubResolver().WithRecord(&identity.Record{IP: boundIP})
	return gate.New(resolver)
}

// failGate evaluates against a resolver whose lookups fail on the wire
func failGate() *gate.Gate {
	return gate.New(identity.NewStubResolver().WithError(errors.New("connection refused")))
}

// unreachableOrigin fails the test if a request reaches it
func unreachableOrigin(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("origin reached for %s %s, want denial at the gate", r.Method, r.URL.Path)
	})
}

func guardedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Cookie", "CF_Authorization=tok123")
	req.Header.Set("CF-Connecting-IP", "203.0.113.7")
	return req
}

func TestHandler_AdmittedPassthrough(t *testing.T) {
	type seen struct {
		method string
		path   string
		query  string
		host   string
		cookie string
		xff    string
		body   string
	}
	var origin seen

	originServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		origin = seen{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			host:   r.Host,
			cookie: r.Header.Get("Cookie"),
			xff:    r.Header.Get("X-Forwarded-For"),
			body:   string(body),
		}
		w.Header().Set("X-Origin", "reached")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "origin response")
	}))
	defer originServer.Close()

	target, err := url.Parse(originServer.URL)
	if err != nil {
		t.Fatalf("failed to parse origin URL: %v", err)
	}
	handler := NewHandler(admitGate("203.0.113.7"), NewOriginProxy(target, nil))

	req := httptest.NewRequest("POST", "http://app.example.com/api/orders?limit=5", strings.NewReader("payload"))
	req.Header.Set("Cookie", "a=1; CF_Authorization=tok123; b=x=y")
	req.Header.Set("CF-Connecting-IP", "203.0.113.7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// The origin response comes back as-is
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Body.String(); got != "origin response" {
		t.Errorf("body = %q, want %q", got, "origin response")
	}
	if got := rec.Header().Get("X-Origin"); got != "reached" {
		t.Errorf("X-Origin = %q, want %q", got, "reached")
	}

	// The origin saw the request as the edge sent it
	if origin.method != "POST" {
		t.Errorf("origin method = %s, want POST", origin.method)
	}
	if origin.path != "/api/orders" {
		t.Errorf("origin path = %s, want /api/orders", origin.path)
	}
	if origin.query != "limit=5" {
		t.Errorf("origin query = %s, want limit=5", origin.query)
	}
	if origin.host != "app.example.com" {
		t.Errorf("origin host = %s, want app.example.com", origin.host)
	}
	if origin.cookie != "a=1; CF_Authorization=tok123; b=x=y" {
		t.Errorf("origin cookie = %q, want the inbound header", origin.cookie)
	}
	if origin.xff != "" {
		t.Errorf("X-Forwarded-For = %q, want none added", origin.xff)
	}
	if origin.body != "payload" {
		t.Errorf("origin body = %q, want %q", origin.body, "payload")
	}
}

func TestHandler_Denials(t *testing.T) {
	t.Run("missing cookie header", func(t *testing.T) {
		handler := NewHandler(admitGate("203.0.113.7"), unreachableOrigin(t))

		req := httptest.NewRequest("GET", "http://app.example.com/", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.7")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden" {
			t.Errorf("body = %q, want %q", got, "Forbidden")
		}
	})

	t.Run("cookie header without credential", func(t *testing.T) {
		handler := NewHandler(admitGate("203.0.113.7"), unreachableOrigin(t))

		req := httptest.NewRequest("GET", "http://app.example.com/", nil)
		req.Header.Set("Cookie", "session=abc")
		req.Header.Set("CF-Connecting-IP", "203.0.113.7")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden" {
			t.Errorf("body = %q, want %q", got, "Forbidden")
		}
	})

	t.Run("missing client address header", func(t *testing.T) {
		handler := NewHandler(admitGate("203.0.113.7"), unreachableOrigin(t))

		req := httptest.NewRequest("GET", "http://app.example.com/", nil)
		req.Header.Set("Cookie", "CF_Authorization=tok123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden" {
			t.Errorf("body = %q, want %q", got, "Forbidden")
		}
	})

	t.Run("lookup rejected", func(t *testing.T) {
		resolver := identity.NewStubResolver().WithError(&identity.LookupRejectedError{StatusCode: 401})
		handler := NewHandler(gate.New(resolver), unreachableOrigin(t))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden" {
			t.Errorf("body = %q, want %q", got, "Forbidden")
		}
	})

	t.Run("identity malformed", func(t *testing.T) {
		resolver := identity.NewStubResolver().
			WithError(identity.ErrMalformedIdentity)
		handler := NewHandler(gate.New(resolver), unreachableOrigin(t))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden" {
			t.Errorf("body = %q, want %q", got, "Forbidden")
		}
	})

	t.Run("address mismatch has its own body", func(t *testing.T) {
		handler := NewHandler(admitGate("198.51.100.1"), unreachableOrigin(t))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		// The trailing paren is part of the contract
		if got := rec.Body.String(); got != "Forbidden)" {
			t.Errorf("body = %q, want %q", got, "Forbidden)")
		}
	})

	t.Run("denials carry the decision id", func(t *testing.T) {
		handler := NewHandler(admitGate("198.51.100.1"), unreachableOrigin(t))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

		if got := rec.Header().Get(DecisionIDHeader); got == "" {
			t.Errorf("expected %s header on denial", DecisionIDHeader)
		}
	})
}

func TestHandler_TransportFailure(t *testing.T) {
	handler := NewHandler(failGate(), unreachableOrigin(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got != "Internal Server Error" {
		t.Errorf("body = %q, want %q", got, "Internal Server Error")
	}
	// No decision was reached, so there is no id to report
	if got := rec.Header().Get(DecisionIDHeader); got != "" {
		t.Errorf("%s = %q, want none", DecisionIDHeader, got)
	}
}

func TestHandler_CustomClientIPHeader(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer origin.Close()

	target, err := url.Parse(origin.URL)
	if err != nil {
		t.Fatalf("failed to parse origin URL: %v", err)
	}
	handler := NewHandler(admitGate("203.0.113.7"), NewOriginProxy(target, nil),
		WithClientIPHeader("X-Real-IP"))

	req := httptest.NewRequest("GET", "http://app.example.com/", nil)
	req.Header.Set("Cookie", "CF_Authorization=tok123")
	req.Header.Set("X-Real-IP", "203.0.113.7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestHandler_RepeatedEvaluation(t *testing.T) {
	resolver := identity.NewStubResolver().WithRecord(&identity.Record{IP: "198.51.100.1"})
	handler := NewHandler(gate.New(resolver), unreachableOrigin(t))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("request %d: status = %d, want 403", i+1, rec.Code)
		}
		if got := rec.Body.String(); got != "Forbidden)" {
			t.Fatalf("request %d: body = %q, want %q", i+1, got, "Forbidden)")
		}
	}
	// One lookup per request, nothing cached between them
	if got := resolver.Calls(); got != 2 {
		t.Errorf("resolver calls = %d, want 2", got)
	}
}

func TestOriginProxy_OriginDown(t *testing.T) {
	// A dead origin is a bad gateway, distinct from the gate's own 500
	target, err := url.Parse("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("failed to parse target: %v", err)
	}
	handler := NewHandler(admitGate("203.0.113.7"), NewOriginProxy(target, nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, guardedRequest("GET", "http://app.example.com/"))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
