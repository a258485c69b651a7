package enums

import "fmt"

// FeeStatus tracks whether a fee has been settled.
type FeeStatus string

const (
	FeeStatusUnpaid FeeStatus = "unpaid"
	FeeStatusPaid   FeeStatus = "paid"
)

var validFeeStatuses = []FeeStatus{
	FeeStatusUnpaid,
	FeeStatusPaid,
}

// String implements fmt.Stringer.
func (f FeeStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FeeStatus.
func (f FeeStatus) IsValid() bool {
	for _, candidate := range validFeeStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeeStatus converts raw input into a FeeStatus.
func ParseFeeStatus(value string) (FeeStatus, error) {
	for _, candidate := range validFeeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fee status %q", value)
}
