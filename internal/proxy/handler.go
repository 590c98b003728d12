package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edgetether/tether/internal/gate"
)

// DefaultClientIPHeader is the edge header naming the client address
const DefaultClientIPHeader = "CF-Connecting-IP"

// DecisionIDHeader carries the evaluation id on gate-written responses
const DecisionIDHeader = "Tether-Decision-Id"

// Fixed response bodies, shared by every surface that answers for the
// gate. Denials are deliberately uniform; only an address mismatch is
// distinguishable, by its trailing paren.
const (
	BodyForbidden     = "Forbidden"
	BodyMismatch      = "Forbidden)"
	BodyInternalError = "Internal Server Error"
)

// Handler fronts an origin with the gate. Every request is evaluated;
// admitted requests are handed to the upstream untouched, everything
// else is answered here and never reaches the origin.
type Handler struct {
	gate           *gate.Gate
	upstream       http.Handler
	logger         *slog.Logger
	clientIPHeader string
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the handler's logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClientIPHeader overrides which header names the client address
func WithClientIPHeader(name string) HandlerOption {
	return func(h *Handler) {
		h.clientIPHeader = name
	}
}

// NewHandler creates a gate-fronted handler over upstream
func NewHandler(g *gate.Gate, upstream http.Handler, opts ...HandlerOption) *Handler {
	h := &Handler{
		gate:           g,
		upstream:       upstream,
		logger:         slog.Default(),
		clientIPHeader: DefaultClientIPHeader,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	decision, err := h.gate.Check(r.Context(), h.inputFromRequest(r))
	if err != nil {
		// Could not decide: fail closed rather than guess
		h.logger.LogAttrs(r.Context(), slog.LevelError,
			"identity lookup unreachable",
			slog.String("host", r.Host),
			slog.String("error", err.Error()),
		)
		writePlain(w, http.StatusInternalServerError, BodyInternalError)
		return
	}

	if !decision.Admitted() {
		w.Header().Set(DecisionIDHeader, decision.ID)
		writePlain(w, http.StatusForbidden, DenialBody(decision.Reason))
		return
	}

	h.upstream.ServeHTTP(w, r)
}

// inputFromRequest lifts the parts of the request the gate evaluates.
// A multi-valued Cookie header is joined the way cookies concatenate
// on the wire.
func (h *Handler) inputFromRequest(r *http.Request) *gate.Input {
	cookies, hasCookie := r.Header["Cookie"]
	return &gate.Input{
		Host:            r.Host,
		CookieHeader:    strings.Join(cookies, "; "),
		HasCookieHeader: hasCookie,
		ClientAddress:   r.Header.Get(h.clientIPHeader),
		Method:          r.Method,
		Path:            r.URL.Path,
	}
}

// DenialBody maps a deny reason to its response body
func DenialBody(reason gate.Reason) string {
	if reason == gate.ReasonAddressMismatch {
		return BodyMismatch
	}
	return BodyForbidden
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
