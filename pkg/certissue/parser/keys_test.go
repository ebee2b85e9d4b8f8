package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStemKey(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"A1.jpg", "A1"},
		{"A1.photo.png", "A1"},
		{"photos/A2.png", "A2"},
		{`photos\A3.png`, "A3"},
		{"noext", "noext"},
		{" A1 .jpg", " A1 "},
		{"a1.JPG", "a1"},
		{".hidden.png", ""},
	}

	for _, tt := range tests {
		if got := StemKey(tt.filename); got != tt.expected {
			t.Errorf("StemKey(%q) = %q, expected %q", tt.filename, got, tt.expected)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	decomposed := "Jose\u0301"
	composed := "Jos\u00e9"

	assert.NotEqual(t, decomposed, composed)
	assert.Equal(t, composed, NormalizeKey(decomposed))
	assert.Equal(t, "A1", NormalizeKey("A1"))
}
