package migration

import "testing"

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "formatted rut", input: "12.345.678-5", want: "123456785"},
		{name: "hyphen only", input: "12345678-5", want: "123456785"},
		{name: "bare digits", input: "123456785", want: "123456785"},
		{name: "uppercase k check digit", input: "20.247.750-K", want: "20247750k"},
		{name: "interior spaces", input: " 12 345 678 - 5 ", want: "123456785"},
		{name: "rut prefix", input: "RUT 12.345.678-5", want: "123456785"},
		{name: "en dash separator", input: "12.345.678–5", want: "123456785"},
		{name: "slash separator", input: "12345678/5", want: "123456785"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTaxID(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeTaxID(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeTaxID(got); again != got {
				t.Errorf("not idempotent: NormalizeTaxID(%q) = %q", got, again)
			}
		})
	}
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase with hyphen", input: "ab-cd12", want: "ABCD12"},
		{name: "dots and spaces", input: "AB.CD 12", want: "ABCD12"},
		{name: "already normalized", input: "ABCD12", want: "ABCD12"},
		{name: "old format", input: "bc-1234", want: "BC1234"},
		{name: "empty", input: "", want: ""},
		{name: "punctuation only", input: "--..  ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePlate(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePlate(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizePlate(got); again != got {
				t.Errorf("not idempotent: NormalizePlate(%q) = %q", got, again)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "diacritics stripped", input: "Grúa González", want: "grua gonzalez"},
		{name: "punctuation dropped", input: "Servicio, de: Remolque!", want: "servicio de remolque"},
		{name: "whitespace collapsed", input: "  Juan\t Pérez  ", want: "juan perez"},
		{name: "enye", input: "Ñuñoa", want: "nunoa"},
		{name: "mixed case header", input: "Patente Grúa", want: "patente grua"},
		{name: "digits kept", input: "Grúa N°2", want: "grua n 2"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeText(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeText(got); again != got {
				t.Errorf("not idempotent: NormalizeText(%q) = %q", got, again)
			}
		})
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "surrounding spaces", input: "  hola  ", want: "hola"},
		{name: "bom prefix", input: "\uFEFFFecha", want: "Fecha"},
		{name: "zero width space", input: "\u200Bvalor\u200B", want: "valor"},
		{name: "interior untouched", input: " a  b ", want: "a  b"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
