package utils

import (
	"strings"
	"testing"
)

func TestGenerateShortKey(t *testing.T) {
	key, err := GenerateShortKey()
	if err != nil {
		t.Fatalf("GenerateShortKey() error = %v", err)
	}

	if len(key) != DefaultShortKeyLength {
		t.Errorf("GenerateShortKey() length = %d, want %d", len(key), DefaultShortKeyLength)
	}

	for _, char := range key {
		if !strings.ContainsRune(alphabet, char) {
			t.Errorf("GenerateShortKey() contains invalid character: %c", char)
		}
	}
}

func TestGenerateShortKeyWithLength(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"length 1", 1},
		{"length 4", 4},
		{"length 8", 8},
		{"length 12", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateShortKeyWithLength(tt.length)
			if err != nil {
				t.Errorf("GenerateShortKeyWithLength(%d) error = %v", tt.length, err)
				return
			}

			if len(key) != tt.length {
				t.Errorf("GenerateShortKeyWithLength(%d) length = %d, want %d", tt.length, len(key), tt.length)
			}

			for _, char := range key {
				if !strings.ContainsRune(alphabet, char) {
					t.Errorf("GenerateShortKeyWithLength(%d) contains invalid character: %c", tt.length, char)
				}
			}
		})
	}
}

func TestGenerateShortKeyUniqueness(t *testing.T) {
	generated := make(map[string]bool)
	iterations := 1000

	for i := 0; i < iterations; i++ {
		key, err := GenerateShortKey()
		if err != nil {
			t.Fatalf("GenerateShortKey() error = %v", err)
		}

		if generated[key] {
			t.Errorf("GenerateShortKey() produced duplicate key: %s", key)
		}
		generated[key] = true
	}
}

func TestAlphabetSize(t *testing.T) {
	if len(alphabet) != 62 {
		t.Errorf("alphabet size = %d, want 62", len(alphabet))
	}

	seen := make(map[rune]bool)
	for _, c := range alphabet {
		if seen[c] {
			t.Errorf("alphabet contains duplicate character: %c", c)
		}
		seen[c] = true
	}
}
