package gate

import (
	"time"

	"github.com/edgetether/tether/internal/identity"
)

// Verdict is the outcome of one evaluation
type Verdict string

const (
	// VerdictAdmit lets the request through to the origin
	VerdictAdmit Verdict = "admit"

	// VerdictDeny rejects the request at the gate
	VerdictDeny Verdict = "deny"
)

// Reason identifies why an evaluation denied a request
type Reason string

const (
	// ReasonMissingCredential: no Cookie header, or no usable
	// credential cookie within it
	ReasonMissingCredential Reason = "missing_credential"

	// ReasonMissingClientAddress: the edge did not report who is asking
	ReasonMissingClientAddress Reason = "missing_client_address"

	// ReasonLookupRejected: the identity endpoint did not recognize the
	// credential (non-2xx answer)
	ReasonLookupRejected Reason = "identity_lookup_rejected"

	// ReasonIdentityMalformed: the identity endpoint answered 2xx but
	// the document was unusable (undecodable, or no bound address)
	ReasonIdentityMalformed Reason = "identity_malformed"

	// ReasonAddressMismatch: the credential is bound to a different
	// address than the one the request came from
	ReasonAddressMismatch Reason = "address_mismatch"
)

// Decision is the record of one evaluation. Exactly one Decision (or
// one error, for transport failures) is produced per evaluated request.
type Decision struct {
	// ID uniquely identifies this evaluation for log correlation
	ID string

	// Verdict is the outcome
	Verdict Verdict

	// Reason is set when Verdict is VerdictDeny
	Reason Reason

	// Host the request was addressed to
	Host string

	// ObservedAddress is the client address the edge reported
	ObservedAddress string

	// BoundAddress is the address the credential was issued to,
	// when resolution got that far
	BoundAddress string

	// Identity is the resolved identity document, when resolution
	// succeeded. Diagnostics only; never forwarded.
	Identity *identity.Record

	// UpstreamStatus is the identity endpoint's HTTP status when the
	// lookup was rejected
	UpstreamStatus int

	// EvaluatedAt is when the evaluation started
	EvaluatedAt time.Time

	// Duration is how long the evaluation took
	Duration time.Duration
}

// Admitted reports whether the request may proceed to the origin
func (d *Decision) Admitted() bool {
	return d.Verdict == VerdictAdmit
}
