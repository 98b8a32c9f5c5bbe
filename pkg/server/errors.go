package server

import "fmt"

// kind classifies a game or lobby error per spec §7's taxonomy, so handlers
// can branch on how to propagate it instead of inspecting error strings.
type kind int

const (
	kindDisconnected kind = iota
	kindMalformed
	kindProtocolViolation
	kindRule
	kindInternal
)

func (k kind) String() string {
	switch k {
	case kindDisconnected:
		return "disconnected"
	case kindMalformed:
		return "malformed"
	case kindProtocolViolation:
		return "protocol_violation"
	case kindRule:
		return "rule"
	case kindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// actionError wraps an underlying cause with a kind, mirroring the
// teacher's plain-error-return convention while giving call sites
// something to branch on for §7's propagation rules.
type actionError struct {
	kind  kind
	cause error
}

func (e *actionError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *actionError) Unwrap() error {
	return e.cause
}

func newActionError(k kind, cause error) *actionError {
	return &actionError{kind: k, cause: cause}
}
