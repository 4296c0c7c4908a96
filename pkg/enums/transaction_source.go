package enums

import "fmt"

// TransactionSource records which flow produced a wallet ledger entry.
type TransactionSource string

const (
	TransactionSourceReferral TransactionSource = "referral"
	TransactionSourceOrder    TransactionSource = "order"
	TransactionSourceRefund   TransactionSource = "refund"
	TransactionSourceAdmin    TransactionSource = "admin"
)

var validTransactionSources = []TransactionSource{
	TransactionSourceReferral,
	TransactionSourceOrder,
	TransactionSourceRefund,
	TransactionSourceAdmin,
}

// String implements fmt.Stringer.
func (s TransactionSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionSource.
func (s TransactionSource) IsValid() bool {
	for _, candidate := range validTransactionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionSource converts raw input into a TransactionSource.
func ParseTransactionSource(value string) (TransactionSource, error) {
	for _, candidate := range validTransactionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction source %q", value)
}
