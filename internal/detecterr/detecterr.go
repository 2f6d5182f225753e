// Package detecterr defines the sentinel error kinds checked with
// errors.Is/errors.As throughout the pipeline.
package detecterr

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", ErrX) to add context.
var (
	// ErrTransient marks a log-store or persistence failure that should be
	// retried on the next invocation; the caller must not advance any
	// scheduler pointer when this is returned.
	ErrTransient = errors.New("transient I/O error")

	// ErrMalformedEvent marks an event that is missing a required field or
	// carries an unparseable timestamp. The offending event is skipped;
	// the sub-window continues.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrConfigInvariant marks a Config that violates an invariant (e.g.
	// alert_is_vip_only=true with an empty vip_users set). Callers should
	// log and proceed as if the violated option were at its safe default.
	ErrConfigInvariant = errors.New("config invariant violation")

	// ErrDataLoss marks a scheduler pointer whose lag exceeded the
	// data-loss threshold; the window was reset and no events were
	// processed for the skipped interval.
	ErrDataLoss = errors.New("scheduler data loss")

	// ErrFatal marks an unrecoverable error (e.g. persistence schema
	// mismatch); the invocation must abort without advancing any pointer.
	ErrFatal = errors.New("fatal error")
)
