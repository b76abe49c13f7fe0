// Package mferrors defines the structured error taxonomy shared by every
// phase of the manifest pipeline, along with the CLI exit codes each
// category maps to.
package mferrors

import "fmt"

// Kind classifies an error for the purposes of exit codes and retry policy.
type Kind int

const (
	// KindConfigInvalid covers malformed configuration, weights that do not
	// sum to 1, or unknown enum values. Fatal, exit code 2.
	KindConfigInvalid Kind = iota
	// KindSourceUnavailable covers permanent RepoSource failures (401/403/404).
	// Fatal, exit code 3.
	KindSourceUnavailable
	// KindRateLimited is retryable; after exhausting attempts it escalates
	// to KindProviderExhausted.
	KindRateLimited
	// KindProviderExhausted means a provider's retry budget is spent; the
	// analyzer falls back to the secondary provider.
	KindProviderExhausted
	// KindMalformedResponse is a per-file LLM response parse failure.
	KindMalformedResponse
	// KindScannerUnavailable means a scanner could not be provisioned.
	KindScannerUnavailable
	// KindScannerTimeout means a scanner exceeded its wall-clock budget.
	KindScannerTimeout
	// KindStaleManifest means a later phase resolved a commit that disagrees
	// with the manifest's pinned commit. Fatal, exit code 2.
	KindStaleManifest
	// KindCancelled is a cooperative shutdown. Exit code 4.
	KindCancelled
	// KindCorruptManifest means the on-disk manifest is not valid JSON.
	KindCorruptManifest
	// KindSchemaMismatch means required top-level manifest keys are absent.
	KindSchemaMismatch
	// KindSourceExhausted means a RepoSource operation kept hitting
	// transient errors (5xx, rate-limit) until its retry budget ran out,
	// as distinct from the immediately-fatal permanent errors classified
	// KindSourceUnavailable. The phase still cannot proceed, so it shares
	// KindSourceUnavailable's fatal exit code.
	KindSourceExhausted
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindRateLimited:
		return "RateLimited"
	case KindProviderExhausted:
		return "ProviderExhausted"
	case KindMalformedResponse:
		return "MalformedResponse"
	case KindScannerUnavailable:
		return "ScannerUnavailable"
	case KindScannerTimeout:
		return "ScannerTimeout"
	case KindStaleManifest:
		return "StaleManifest"
	case KindCancelled:
		return "Cancelled"
	case KindCorruptManifest:
		return "CorruptManifest"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindSourceExhausted:
		return "SourceExhausted"
	default:
		return "Unknown"
	}
}

// ExitCode returns the CLI exit code associated with a fatal error kind.
// Non-fatal kinds (RateLimited, MalformedResponse, ScannerTimeout,
// ProviderExhausted) return 0 since they never bubble to the process exit
// path on their own; ScannerUnavailable returns 5.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfigInvalid, KindStaleManifest, KindCorruptManifest, KindSchemaMismatch:
		return 2
	case KindSourceUnavailable, KindSourceExhausted:
		return 3
	case KindCancelled:
		return 4
	case KindScannerUnavailable:
		// Only fatal (exit 5) when it is the sole requested scanner; the
		// controller decides that and constructs the error with that intent.
		return 5
	default:
		return 0
	}
}

// Retryable reports whether the controller should retry locally rather than
// propagate.
func (k Kind) Retryable() bool {
	return k == KindRateLimited
}

// Fatal reports whether this error kind must abort the enclosing phase.
func (k Kind) Fatal() bool {
	switch k {
	case KindConfigInvalid, KindSourceUnavailable, KindSourceExhausted, KindStaleManifest,
		KindCorruptManifest, KindSchemaMismatch, KindCancelled:
		return true
	default:
		return false
	}
}

// Error is a structured error carrying a taxonomy Kind, an optional cause,
// and free-form context for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on Kind alone, ignoring message/context/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext attaches a diagnostic key/value and returns the same error for
// chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if asError(err, &me) {
		return me.Kind, true
	}
	return 0, false
}

// asError is a tiny errors.As shim kept local to avoid importing the errors
// package just for this one call site used by KindOf.
func asError(err error, target **Error) bool {
	for err != nil {
		if me, ok := err.(*Error); ok {
			*target = me
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
