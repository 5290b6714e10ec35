package enums

import "fmt"

// PayoutStatus summarizes an order's vendor payout progress.
type PayoutStatus string

const (
	PayoutStatusNone    PayoutStatus = "none"
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusNone,
	PayoutStatusPending,
	PayoutStatusPaid,
	PayoutStatusFailed,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// PayoutAttemptStatus tracks one row of the payout attempt log.
type PayoutAttemptStatus string

const (
	PayoutAttemptStatusPending PayoutAttemptStatus = "pending"
	PayoutAttemptStatusSent    PayoutAttemptStatus = "sent"
	PayoutAttemptStatusFailed  PayoutAttemptStatus = "failed"
)

var validPayoutAttemptStatuses = []PayoutAttemptStatus{
	PayoutAttemptStatusPending,
	PayoutAttemptStatusSent,
	PayoutAttemptStatusFailed,
}

// IsValid reports whether the value is a known PayoutAttemptStatus.
func (s PayoutAttemptStatus) IsValid() bool {
	for _, candidate := range validPayoutAttemptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutAttemptStatus converts raw input into a PayoutAttemptStatus.
func ParsePayoutAttemptStatus(value string) (PayoutAttemptStatus, error) {
	for _, candidate := range validPayoutAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout attempt status %q", value)
}
