// Package format renders values for chat messages.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is the prefix printed before amounts.
const Currency = "Rp"

var storeLanguage = language.Indonesian

// Money prints an amount with the store locale grouping, e.g. "Rp 50.000".
func Money(amount int64) string {
	return message.NewPrinter(storeLanguage).Sprintf("%s %d", Currency, amount)
}

// Number prints an integer with locale grouping.
func Number(n int64) string {
	return message.NewPrinter(storeLanguage).Sprintf("%d", n)
}

// Time prints t in minutes resolution.
func Time(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// OptionalTime prints t or a dash when it is unset.
func OptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return Time(*t)
}
