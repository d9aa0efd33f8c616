package migration

import "testing"

func TestRutCheckDigit(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "standard body", body: "12345678", want: "5"},
		{name: "repeated ones", body: "11111111", want: "1"},
		{name: "single digit k", body: "6", want: "k"},
		{name: "k from longer body", body: "20247750", want: "k"},
		{name: "remainder eleven gives zero", body: "14", want: "0"},
		{name: "empty body", body: "", want: ""},
		{name: "non digit", body: "12a45", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rutCheckDigit(tt.body); got != tt.want {
				t.Errorf("rutCheckDigit(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestValidTaxID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "formatted valid", input: "12.345.678-5", want: true},
		{name: "bare valid", input: "123456785", want: true},
		{name: "uppercase K valid", input: "20.247.750-K", want: true},
		{name: "lowercase k valid", input: "20247750-k", want: true},
		{name: "shortest valid", input: "6-K", want: true},
		{name: "wrong check digit", input: "12.345.678-6", want: false},
		{name: "letters in body", input: "12A45678-5", want: false},
		{name: "too short", input: "5", want: false},
		{name: "empty", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTaxID(tt.input); got != tt.want {
				t.Errorf("ValidTaxID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
