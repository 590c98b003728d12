package gate

import (
	"context"

	"github.com/edgetether/tether/internal/identity"
)

// Observer is notified of gate evaluations. Implementations create a
// request-scoped probe per evaluation; the returned context is carried
// through the rest of the evaluation.
type Observer interface {
	CheckStarted(ctx context.Context, input *Input) (context.Context, CheckProbe)
}

// CheckProbe receives the events of a single evaluation. Every probe
// sees End exactly once; Decided is called for every verdict, and
// ResolutionFailed precedes a lookup-related deny or transport error.
type CheckProbe interface {
	// CredentialFound fires when a usable credential cookie was
	// extracted. The credential value itself is never exposed.
	CredentialFound()

	// IdentityResolved fires when the identity endpoint returned a
	// usable document
	IdentityResolved(rec *identity.Record)

	// ResolutionFailed fires when the identity lookup did not produce a
	// usable document, whatever the class of failure
	ResolutionFailed(err error)

	// Decided fires with the final decision of the evaluation
	Decided(decision *Decision)

	// End marks the end of the evaluation
	End()
}

// noopObserver is the default when no observer is configured
type noopObserver struct{}

func (noopObserver) CheckStarted(ctx context.Context, _ *Input) (context.Context, CheckProbe) {
	return ctx, noopProbe{}
}

type noopProbe struct{}

func (noopProbe) CredentialFound() {}

func (noopProbe) IdentityResolved(*identity.Record) {}

func (noopProbe) ResolutionFailed(error) {}

func (noopProbe) Decided(*Decision) {}

func (noopProbe) End() {}
