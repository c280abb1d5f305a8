package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z ]+$`)

	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{
			name:        "valid string",
			input:       "Alice",
			constraints: StringConstraints{MinLength: 1, MaxLength: 10},
			want:        "Alice",
		},
		{
			name:        "trims whitespace",
			input:       "  Alice  ",
			constraints: StringConstraints{MinLength: 1, MaxLength: 10, TrimSpace: true},
			want:        "Alice",
		},
		{
			name:        "empty rejected",
			input:       "",
			constraints: StringConstraints{MinLength: 1},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty allowed",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			want:        "",
		},
		{
			name:        "whitespace only trims to empty",
			input:       "   ",
			constraints: StringConstraints{MinLength: 1, TrimSpace: true},
			wantErr:     ErrEmpty,
		},
		{
			name:        "too short",
			input:       "ab",
			constraints: StringConstraints{MinLength: 3},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", 11),
			constraints: StringConstraints{MaxLength: 10},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "length counts runes not bytes",
			input:       "héllo",
			constraints: StringConstraints{MinLength: 5, MaxLength: 5},
			want:        "héllo",
		},
		{
			name:        "pattern mismatch",
			input:       "Alice42",
			constraints: StringConstraints{AllowedPattern: pattern},
			wantErr:     ErrInvalidCharacters,
		},
		{
			name:        "pattern match",
			input:       "Princess Peach",
			constraints: StringConstraints{AllowedPattern: pattern},
			want:        "Princess Peach",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("String() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("String() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "alice", want: "alice"},
		{name: "with separators", input: "user_42.test-a", want: "user_42.test-a"},
		{name: "trimmed", input: "  alice  ", want: "alice"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace inside", input: "alice smith", wantErr: true},
		{name: "leading separator", input: "-alice", wantErr: true},
		{name: "shell hostile", input: "alice;rm -rf", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 65), wantErr: true},
		{name: "max length", input: strings.Repeat("a", 64), want: strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("UserID(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("UserID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("UserID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
