package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeInstallmentNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"2/6/6", 2},
		{"2/6", 2},
		{"3", 3},
		{" 04 ", 4},
		{"abc", 1},
		{"", 1},
		{"0", 1},
		{"-2/6", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeInstallmentNumber(tt.raw), tt.raw)
	}
	assert.Equal(t, "2/6", InstallmentDisplay(NormalizeInstallmentNumber("2/6/6"), 6))
}

func TestParseInstallmentLabel(t *testing.T) {
	assert.Equal(t, 2, ParseInstallmentLabel("2/6"))
	assert.Equal(t, 1, ParseInstallmentLabel("1"))
	assert.Equal(t, 0, ParseInstallmentLabel(""))
	assert.Equal(t, 0, ParseInstallmentLabel("n/a"))
}
