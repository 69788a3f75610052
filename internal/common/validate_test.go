package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePayee(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Home Depot", "home depot"},
		{"  The Home Depot #1234  ", "the home depot 1234"},
		{"H.D. Supply, Inc.", "hd supply inc"},
		{"JACIEL   HERNANDEZ", "jaciel hernandez"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePayee(c.input), c.input)
	}
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(125.43, "amount"))
	assert.Error(t, ValidatePositiveAmount(0, "amount"))
	assert.Error(t, ValidatePositiveAmount(-10, "amount"))
	assert.Error(t, ValidatePositiveAmount(10000001, "amount"))
}

func TestParseDate(t *testing.T) {
	date, err := ParseDate("2026-08-24", "date")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), date)

	for _, bad := range []string{"08/24/2026", "2026-13-01", "yesterday", "2099-01-01"} {
		_, err := ParseDate(bad, "date")
		assert.Error(t, err, bad)
	}
}

func TestValidateDateRange(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateDateRange(start, start.AddDate(0, 1, 0)))
	assert.Error(t, ValidateDateRange(start, start.AddDate(0, 0, -1)))
	assert.Error(t, ValidateDateRange(start, start.AddDate(11, 0, 0)))
}

func TestKindOf(t *testing.T) {
	err := NewError(ErrDuplicateSuspected, "match found")
	assert.Equal(t, ErrDuplicateSuspected, KindOf(err))
	assert.Equal(t, ErrBackend, KindOf(assert.AnError))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$125.43", FormatMoney(125.43))
	assert.Equal(t, "$1250.00", FormatMoney(1250))
}
