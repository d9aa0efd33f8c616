package migration

// Chilean RUT check digit, módulo 11. The body digits are weighted
// 2,3,4,5,6,7 cycling from the rightmost digit leftward; the check digit
// is 11 minus the sum mod 11, with 11 → "0" and 10 → "k".

// rutCheckDigit computes the expected check digit for a RUT body made of
// decimal digits only. Returns "" when the body is empty or contains a
// non-digit.
func rutCheckDigit(body string) string {
	if body == "" {
		return ""
	}
	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return ""
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch rem := 11 - sum%11; rem {
	case 11:
		return "0"
	case 10:
		return "k"
	default:
		return string(rune('0' + rem))
	}
}

// ValidTaxID reports whether a raw RUT string carries a correct check
// digit. The input is normalized first, so "12.345.678-5", "12345678-5"
// and "123456785" are all accepted forms of the same RUT.
func ValidTaxID(raw string) bool {
	key := NormalizeTaxID(raw)
	if len(key) < 2 {
		return false
	}
	body, dv := key[:len(key)-1], key[len(key)-1:]
	want := rutCheckDigit(body)
	return want != "" && dv == want
}
