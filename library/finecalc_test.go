package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDefaults(t *testing.T) {
	calc := NewFineCalculator()

	testCases := []struct {
		mediaType string
		days      int
		want      int64
	}{
		{"CD", 3, 60},
		{"cd", 3, 60},
		{"BOOK", 2, 20},
		{"book", 5, 50},
		{"JOURNAL", 4, 60},
		{"UNKNOWN", 3, 0},
		{"", 3, 0},
		{"CD", 0, 0},
		{"CD", -2, 0},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.want, calc.Calculate(tt.mediaType, tt.days),
			"Calculate(%q, %d)", tt.mediaType, tt.days)
	}
}

func TestRegisterStrategy(t *testing.T) {
	calc := NewFineCalculator()

	calc.RegisterStrategy("dvd", 25)
	assert.Equal(t, int64(75), calc.Calculate("DVD", 3))

	// Overwrites an existing registration.
	calc.RegisterStrategy("Book", 40)
	assert.Equal(t, int64(40), calc.Calculate("BOOK", 1))

	// Bad arguments are ignored.
	calc.RegisterStrategy("", 99)
	calc.RegisterStrategy("CD", 0)
	assert.Equal(t, int64(20), calc.Calculate("CD", 1))
}
