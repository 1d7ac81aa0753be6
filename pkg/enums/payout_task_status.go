package enums

import "fmt"

// PayoutTaskStatus maps to the payout_task_status enum in Postgres.
type PayoutTaskStatus string

const (
	PayoutTaskStatusPending           PayoutTaskStatus = "pending"
	PayoutTaskStatusCompleted         PayoutTaskStatus = "completed"
	PayoutTaskStatusManuallyCompleted PayoutTaskStatus = "manually_completed"
)

var validPayoutTaskStatuses = []PayoutTaskStatus{
	PayoutTaskStatusPending,
	PayoutTaskStatusCompleted,
	PayoutTaskStatusManuallyCompleted,
}

// String implements fmt.Stringer.
func (s PayoutTaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the task can no longer change state.
func (s PayoutTaskStatus) IsTerminal() bool {
	return s == PayoutTaskStatusCompleted || s == PayoutTaskStatusManuallyCompleted
}

// IsValid reports whether the value is known.
func (s PayoutTaskStatus) IsValid() bool {
	for _, candidate := range validPayoutTaskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutTaskStatus converts raw input into a PayoutTaskStatus.
func ParsePayoutTaskStatus(value string) (PayoutTaskStatus, error) {
	for _, candidate := range validPayoutTaskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout task status %q", value)
}
