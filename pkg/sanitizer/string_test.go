package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Bac Prep Winter  ",
			want:  "Bac Prep Winter",
		},
		{
			name:  "multiple spaces between words",
			input: "Bac    Prep   Winter",
			want:  "Bac Prep Winter",
		},
		{
			name:  "tabs and newlines",
			input: "Bac\t\nPrep",
			want:  "Bac Prep",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve accents",
			input: " Préparation Bac – Éco ",
			want:  "Préparation Bac – Éco",
		},
		{
			name:  "arabic characters",
			input: " تحضير الباكالوريا ",
			want:  "تحضير الباكالوريا",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and trim",
			input: "  Amina.ElFassi@Example.COM  ",
			want:  "amina.elfassi@example.com",
		},
		{
			name:  "already normalized",
			input: "amina@example.com",
			want:  "amina@example.com",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEmail(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeCIN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "uppercase",
			input: "ab123456",
			want:  "AB123456",
		},
		{
			name:  "strip interior spaces",
			input: " AB 12 34 56 ",
			want:  "AB123456",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCIN(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeCIN(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
