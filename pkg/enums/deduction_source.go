package enums

import "fmt"

// DeductionSource identifies the refund flow that created a pending deduction.
type DeductionSource string

const (
	DeductionSourceComplaintRefund    DeductionSource = "complaint_refund"
	DeductionSourceCancellationRefund DeductionSource = "cancellation_refund"
)

var validDeductionSources = []DeductionSource{
	DeductionSourceComplaintRefund,
	DeductionSourceCancellationRefund,
}

// String implements fmt.Stringer.
func (s DeductionSource) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s DeductionSource) IsValid() bool {
	for _, candidate := range validDeductionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDeductionSource converts raw input into a DeductionSource.
func ParseDeductionSource(value string) (DeductionSource, error) {
	for _, candidate := range validDeductionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deduction source %q", value)
}
