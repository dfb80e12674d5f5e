package payment

// Overall order result reported by the gateway
const (
	ResultSuccess = "SUCCESS"
	ResultPending = "PENDING"
)

// GatewayCode is the gateway's per-transaction response code
type GatewayCode string

const (
	CodeApproved             GatewayCode = "APPROVED"
	CodeDeclined             GatewayCode = "DECLINED"
	CodeExpiredCard          GatewayCode = "EXPIRED_CARD"
	CodeInsufficientFunds    GatewayCode = "INSUFFICIENT_FUNDS"
	CodeAuthenticationFailed GatewayCode = "AUTHENTICATION_FAILED"
	CodeInvalidCSC           GatewayCode = "INVALID_CSC"
	CodeNotEnrolled3DSecure  GatewayCode = "NOT_ENROLLED_3D_SECURE"
	CodeDeclinedAVS          GatewayCode = "DECLINED_AVS"
	CodeTimedOut             GatewayCode = "TIMED_OUT"
	CodeSystemError          GatewayCode = "SYSTEM_ERROR"
	CodeDuplicateBatch       GatewayCode = "DUPLICATE_BATCH"
	CodePending              GatewayCode = "PENDING"
	CodeReferred             GatewayCode = "REFERRED"
	CodeAborted              GatewayCode = "ABORTED"
	CodeCancelled            GatewayCode = "CANCELLED"

	// CodeUnrecognized stands in for any code string this service does not know
	CodeUnrecognized GatewayCode = "UNRECOGNIZED"
)

var knownCodes = map[GatewayCode]bool{
	CodeApproved: true, CodeDeclined: true, CodeExpiredCard: true, CodeInsufficientFunds: true,
	CodeAuthenticationFailed: true, CodeInvalidCSC: true, CodeNotEnrolled3DSecure: true,
	CodeDeclinedAVS: true, CodeTimedOut: true, CodeSystemError: true, CodeDuplicateBatch: true,
	CodePending: true, CodeReferred: true, CodeAborted: true, CodeCancelled: true,
}

// ParseGatewayCode maps a raw code string; unknown strings become CodeUnrecognized
func ParseGatewayCode(s string) GatewayCode {
	code := GatewayCode(s)
	if knownCodes[code] {
		return code
	}
	return CodeUnrecognized
}

var declineReasons = map[GatewayCode]string{
	CodeDeclined:             "Transaction was declined by the bank",
	CodeExpiredCard:          "The card used has expired",
	CodeInsufficientFunds:    "Insufficient funds in the account",
	CodeSystemError:          "Internal payment processing error",
	CodeAuthenticationFailed: "3D Secure authentication failed",
	CodeInvalidCSC:           "Invalid card security code",
	CodeNotEnrolled3DSecure:  "Card not enrolled in 3D Secure",
	CodeDeclinedAVS:          "Address verification failed",
	CodeTimedOut:             "Transaction timed out",
	CodeDuplicateBatch:       "Duplicate transaction detected",
	CodeReferred:             "Transaction requires special approval",
	CodeAborted:              "Transaction was aborted by user",
	CodeCancelled:            "Transaction was cancelled",
}

// DefaultDeclineReason is shown when a code has no specific message
const DefaultDeclineReason = "Payment processing failed"

// DeclineReason returns a human-readable reason for a failed payment
func DeclineReason(code GatewayCode) string {
	if reason, ok := declineReasons[code]; ok {
		return reason
	}
	return DefaultDeclineReason
}

// IsRetryable reports whether the donor may simply try the payment again
func IsRetryable(code GatewayCode) bool {
	return code == CodeTimedOut || code == CodeSystemError
}

// FailureMessage is the decline reason, amended with a retry hint for transient codes
func FailureMessage(code GatewayCode) string {
	reason := DeclineReason(code)
	if IsRetryable(code) {
		return reason + ". Please try again."
	}
	return reason
}
