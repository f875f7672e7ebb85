package http

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain", "user", false},
		{"Unicode", "usuário", false},
		{"Dotted", "cart.items", false},
		{"Exact Limit", strings.Repeat("a", MaxNameSize), false},
		{"Empty", "", true},
		{"Over Limit", strings.Repeat("a", MaxNameSize+1), true},
		{"Invalid UTF-8", "bad\xff", true},
		{"ANSI Code", "\x1b[31mred", true},
		{"Null Byte", "null\x00byte", true},
		{"Newline", "line\nbreak", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Errorf("validateName(%q) = %v, want ErrInvalidName", tt.input, err)
				}
			} else if err != nil {
				t.Errorf("validateName(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}
