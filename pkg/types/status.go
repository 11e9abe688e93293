package types

import "strings"

// TransactionStatus is the lifecycle state of a collection request.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusCreated    TransactionStatus = "CREATED"
	TransactionStatusSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is valid from s.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccessful || s == TransactionStatusFailed
}

// Known reports whether s is part of the designed state machine.
func (s TransactionStatus) Known() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCreated, TransactionStatusSuccessful, TransactionStatusFailed:
		return true
	}
	return false
}

// ParseTransactionStatus normalizes a wire status string. Unrecognized values
// are returned as-is (upper-cased) so callers can log and degrade.
func ParseTransactionStatus(s string) TransactionStatus {
	return TransactionStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// FailureReasonUnknown is recorded when a failed transaction carries no
// recognizable reason code.
const FailureReasonUnknown = "Unknown"

// failureReasons is the network-defined reason vocabulary for failed
// collection requests.
var failureReasons = map[string]struct{}{
	"PAYEE_NOT_FOUND":                {},
	"PAYER_NOT_FOUND":                {},
	"NOT_ALLOWED":                    {},
	"NOT_ALLOWED_TARGET_ENVIRONMENT": {},
	"INVALID_CALLBACK_URL_HOST":      {},
	"INVALID_CURRENCY":               {},
	"SERVICE_UNAVAILABLE":            {},
	"INTERNAL_PROCESSING_ERROR":      {},
	"NOT_ENOUGH_FUNDS":               {},
	"PAYER_LIMIT_REACHED":            {},
	"PAYEE_NOT_ALLOWED_TO_RECEIVE":   {},
	"PAYMENT_NOT_APPROVED":           {},
	"RESOURCE_NOT_FOUND":             {},
	"APPROVAL_REJECTED":              {},
	"EXPIRED":                        {},
	"TRANSACTION_CANCELED":           {},
	"RESOURCE_ALREADY_EXIST":         {},
	"COULD_NOT_PERFORM_TRANSACTION":  {},
}

// NormalizeFailureReason maps a wire reason code onto the fixed vocabulary,
// falling back to FailureReasonUnknown.
func NormalizeFailureReason(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, ok := failureReasons[code]; ok {
		return code
	}
	return FailureReasonUnknown
}
