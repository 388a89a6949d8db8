package paypal

import (
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

// PayPal rejects fractional values for these currencies.
var zeroDecimal = map[string]bool{"HUF": true, "JPY": true, "TWD": true}

func decimals(currency string) int {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// formatAmount renders minor units as the decimal string PayPal expects.
func formatAmount(minor int64, currency string) string {
	digits := decimals(currency)
	if digits == 0 {
		return strconv.FormatInt(minor, 10)
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	frac := strconv.FormatInt(minor%100, 10)
	if len(frac) < digits {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(minor/100, 10) + "." + frac
}

// parseAmount converts a decimal string into minor units without going
// through floating point.
func parseAmount(value string, currency string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	digits := decimals(currency)
	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > digits {
		if strings.TrimRight(frac[digits:], "0") != "" {
			return 0, core.NewUnknownError(ProviderID, "amount "+value+" has more precision than "+currency+" allows", nil)
		}
		frac = frac[:digits]
	}
	frac += strings.Repeat("0", digits-len(frac))
	minor, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, core.NewUnknownError(ProviderID, "malformed amount "+value, err)
	}
	return minor, nil
}

func money(minor int64, currency string) wireMoney {
	currency = strings.ToUpper(currency)
	return wireMoney{CurrencyCode: currency, Value: formatAmount(minor, currency)}
}

func requirePrice(amount int64, currency string) error {
	violations := []goerrors.FieldError{}
	if amount <= 0 {
		violations = append(violations, goerrors.FieldError{Field: "amount", Message: "paypal needs an explicit price"})
	}
	if currency == "" {
		violations = append(violations, goerrors.FieldError{Field: "currency", Message: "paypal needs an explicit currency"})
	}
	if len(violations) == 0 {
		return nil
	}
	return core.NewValidationError(ProviderID, "price is incomplete", violations...)
}
