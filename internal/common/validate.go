package common

import (
	"fmt"
	"strings"
	"time"
)

// NormalizePayee lowercases, strips punctuation and collapses whitespace so
// the same vendor written differently across documents compares equal.
func NormalizePayee(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidateRequiredString rejects empty or whitespace-only values.
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return FieldError(ErrMissingParameter, fieldName, "%s is required", fieldName)
	}
	return nil
}

// ValidatePositiveAmount checks monetary inputs before they reach the
// backend. The upper bound guards against unit mistakes (cents vs dollars).
func ValidatePositiveAmount(value float64, fieldName string) error {
	if value <= 0 {
		return FieldError(ErrInvalidParameter, fieldName, "%s must be positive", fieldName)
	}
	if value > 10000000.00 {
		return FieldError(ErrInvalidParameter, fieldName, "%s cannot exceed 10,000,000.00", fieldName)
	}
	return nil
}

// ParseDate parses YYYY-MM-DD and bounds the result to a plausible range.
func ParseDate(dateStr, fieldName string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, FieldError(ErrInvalidParameter, fieldName, "%s must be in YYYY-MM-DD format", fieldName)
	}
	if date.After(time.Now().AddDate(10, 0, 0)) {
		return time.Time{}, FieldError(ErrInvalidParameter, fieldName, "%s cannot be more than 10 years in the future", fieldName)
	}
	if date.Before(time.Now().AddDate(-100, 0, 0)) {
		return time.Time{}, FieldError(ErrInvalidParameter, fieldName, "%s cannot be more than 100 years ago", fieldName)
	}
	return date, nil
}

// ValidateDateRange rejects inverted or unreasonably large ranges.
func ValidateDateRange(startDate, endDate time.Time) error {
	if endDate.Before(startDate) {
		return NewError(ErrInvalidParameter, "end date cannot be before start date")
	}
	if endDate.Sub(startDate) > time.Hour*24*365*10 {
		return NewError(ErrInvalidParameter, "date range cannot exceed 10 years")
	}
	return nil
}

// FormatMoney renders an amount the way command output shows it.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
