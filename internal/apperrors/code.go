package apperrors

import "fmt"

// CodeReason distinguishes confirmation-code failures for server-side logs.
// Clients only ever see SafeCodeMessage, so the code space cannot be probed.
type CodeReason string

const (
	CodeReasonNotFound    CodeReason = "not_found"
	CodeReasonExpired     CodeReason = "expired"
	CodeReasonAlreadyUsed CodeReason = "already_used"
	CodeReasonMismatch    CodeReason = "mismatch"
)

// SafeCodeMessage is the only code-failure text returned to clients.
const SafeCodeMessage = "invalid or expired code"

// CodeError is a confirmation-code verification failure.
type CodeError struct {
	Reason CodeReason
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("confirmation code rejected: %s", e.Reason)
}
