package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsEmpty(c.input), "IsEmpty(%q)", c.input)
	}
}

func TestIsInSlice(t *testing.T) {
	sources := []string{"web", "mobile"}

	assert.True(t, IsInSlice("web", sources))
	assert.False(t, IsInSlice("admin", sources))
	assert.False(t, IsInSlice("", nil))
}

func TestIsValidMonth(t *testing.T) {
	cases := map[string]bool{
		"2026-02": true,
		"1999-12": true,
		"2026-13": false,
		"2026-00": false,
		"2026-2":  false,
		"26-02":   false,
		"":        false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidMonth(in), in)
	}
}

func TestIsValidClockTime(t *testing.T) {
	cases := map[string]bool{
		"09:00": true,
		"23:59": true,
		"00:00": true,
		"24:00": false,
		"9:00":  false,
		"09:60": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidClockTime(in), in)
	}
}

func TestIsValidTimezone(t *testing.T) {
	assert.True(t, IsValidTimezone("Asia/Jakarta"))
	assert.True(t, IsValidTimezone("UTC"))
	assert.False(t, IsValidTimezone("Mars/Olympus"))
	assert.False(t, IsValidTimezone(" "))
}

func TestIsValidDateTime(t *testing.T) {
	_, ok := IsValidDateTime("2024-01-15T10:30:00+07:00")
	assert.True(t, ok)
	_, ok = IsValidDateTime("2024-01-15T10:30:00.123456Z")
	assert.True(t, ok)
	_, ok = IsValidDateTime("2024-01-15 10:30")
	assert.False(t, ok)
}

type sampleRequest struct {
	Month  string  `json:"month" validate:"required,month"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Start  string  `json:"start_time" validate:"omitempty,clock"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sampleRequest{Month: "2026-02", Amount: 10, Start: "08:30"}))

	err := Struct(sampleRequest{Month: "2026-2", Amount: 0, Start: "8:30"})
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	m := errs.ToMap()
	assert.Equal(t, "month must be in YYYY-MM format", m["month"])
	assert.Equal(t, "amount must be greater than 0", m["amount"])
	assert.Equal(t, "start_time must be in HH:MM format", m["start_time"])
}

func TestValidationErrorsErr(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())
	errs.Add("date", "date is required")
	assert.EqualError(t, errs.Err(), "date: date is required")
}
