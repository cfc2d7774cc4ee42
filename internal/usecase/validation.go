package usecase

import (
	"strconv"
	"strings"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
)

// ItemInput is a parsed "login|secret[|notes]" line.
type ItemInput struct {
	Login  string
	Secret string
	Notes  string
}

// ParseItemInput validates the operator's stock line.
func ParseItemInput(raw string) (ItemInput, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return ItemInput{}, domainErrors.Invalid("format", "expected login|secret or login|secret|notes")
	}
	in := ItemInput{Login: strings.TrimSpace(parts[0]), Secret: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		in.Notes = strings.TrimSpace(parts[2])
	}
	if !validLogin(in.Login) {
		return ItemInput{}, domainErrors.Invalid("login", "must look like an email address")
	}
	if in.Secret == "" {
		return ItemInput{}, domainErrors.Invalid("secret", "must not be empty")
	}
	return in, nil
}

func validLogin(login string) bool {
	at := strings.LastIndex(login, "@")
	if at <= 0 {
		return false
	}
	return strings.Contains(login[at+1:], ".")
}

// PaymentChannelInput is a parsed "NAME|NUMBER|HOLDER" line.
type PaymentChannelInput struct {
	Method string
	Number string
	Holder string
}

// ParsePaymentChannelInput validates the operator's payment channel line.
// The method name is upper-cased so it stays a stable key.
func ParsePaymentChannelInput(raw string) (PaymentChannelInput, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return PaymentChannelInput{}, domainErrors.Invalid("format", "expected NAME|NUMBER|HOLDER")
	}
	in := PaymentChannelInput{
		Method: strings.ToUpper(strings.TrimSpace(parts[0])),
		Number: strings.TrimSpace(parts[1]),
		Holder: strings.TrimSpace(parts[2]),
	}
	if in.Method == "" || in.Number == "" || in.Holder == "" {
		return PaymentChannelInput{}, domainErrors.Invalid("format", "all fields are required")
	}
	return in, nil
}

// ParsePrice accepts digits with optional "." or "," grouping.
func ParsePrice(raw string) (int64, error) {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, domainErrors.Invalid("price", "must be a number")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0, domainErrors.Invalid("price", "must be a number")
		}
	}
	price, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, domainErrors.Invalid("price", "out of range")
	}
	if price <= 0 {
		return 0, domainErrors.Invalid("price", "must be greater than zero")
	}
	return price, nil
}

// ParseID parses a positive numeric identifier.
func ParseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domainErrors.Invalid(field, "must be a positive number")
	}
	return id, nil
}
