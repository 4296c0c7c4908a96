package enums

import "fmt"

// WalletCurrency distinguishes the two balances carried on a user account.
type WalletCurrency string

const (
	WalletCurrencyMoney WalletCurrency = "money"
	WalletCurrencyCoins WalletCurrency = "coins"
)

var validWalletCurrencies = []WalletCurrency{
	WalletCurrencyMoney,
	WalletCurrencyCoins,
}

// String implements fmt.Stringer.
func (c WalletCurrency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c WalletCurrency) IsValid() bool {
	for _, candidate := range validWalletCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseWalletCurrency converts a raw string into a WalletCurrency.
func ParseWalletCurrency(value string) (WalletCurrency, error) {
	for _, candidate := range validWalletCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet currency %q", value)
}
