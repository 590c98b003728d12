package probe

import (
	"context"
	"log/slog"

	"github.com/edgetether/tether/internal/gate"
	"github.com/edgetether/tether/internal/identity"
)

// loggingObserver creates request-scoped logging probes
type loggingObserver struct {
	logger *slog.Logger
}

// NewLoggingGateObserver creates an observer that logs gate evaluation
// events using structured logging with slog. Credential values never
// appear in log output.
func NewLoggingGateObserver(logger *slog.Logger) gate.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{
		logger: logger,
	}
}

func (o *loggingObserver) CheckStarted(ctx context.Context, input *gate.Input) (context.Context, gate.CheckProbe) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, "Starting gate evaluation",
		slog.String("host", input.Host),
		slog.String("method", input.Method),
		slog.String("path", input.Path),
	)

	// Return a request-scoped probe that captures the context
	return ctx, &loggingProbe{
		ctx:    ctx,
		logger: o.logger,
	}
}

// loggingProbe is a request-scoped probe that logs events for a single evaluation
type loggingProbe struct {
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingProbe) CredentialFound() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Credential cookie present")
}

func (p *loggingProbe) IdentityResolved(rec *identity.Record) {
	attrs := []slog.Attr{}

	if rec != nil {
		attrs = append(attrs, slog.String("bound_address", rec.IP))
		if rec.Email != "" {
			attrs = append(attrs, slog.String("email", rec.Email))
		}
		if rec.UserUUID != "" {
			attrs = append(attrs, slog.String("user_uuid", rec.UserUUID))
		}
	}

	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Identity resolved", attrs...)
}

func (p *loggingProbe) ResolutionFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError,
		"Identity resolution failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingProbe) Decided(decision *gate.Decision) {
	attrs := []slog.Attr{
		slog.String("decision_id", decision.ID),
		slog.String("verdict", string(decision.Verdict)),
		slog.String("host", decision.Host),
		slog.Duration("duration", decision.Duration),
	}

	if decision.Reason != "" {
		attrs = append(attrs, slog.String("reason", string(decision.Reason)))
	}
	if decision.ObservedAddress != "" {
		attrs = append(attrs, slog.String("observed_address", decision.ObservedAddress))
	}
	if decision.BoundAddress != "" {
		attrs = append(attrs, slog.String("bound_address", decision.BoundAddress))
	}
	if decision.UpstreamStatus != 0 {
		attrs = append(attrs, slog.Int("upstream_status", decision.UpstreamStatus))
	}

	level := slog.LevelInfo
	if decision.Verdict == gate.VerdictDeny {
		level = slog.LevelWarn
	}

	p.logger.LogAttrs(p.ctx, level, "Gate decision", attrs...)
}

func (p *loggingProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Gate evaluation completed")
}
