package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"
)

// dateLayouts are the accepted date formats, tried in order. Chilean
// day-first forms come before ISO.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate parses a cell as a service date, trying each accepted layout.
func ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseMoney parses a cell as a monetary amount. Currency symbols and
// spaces are stripped; both "." and "," are accepted as thousands or
// decimal separators. When both appear, the later one is the decimal
// separator; a single comma is read as a decimal comma; repeated
// separators are thousands marks.
func ParseMoney(value string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r == '-', r == ',', r == '.':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return decimal.Decimal{}, fmt.Errorf("unrecognized amount %q", value)
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 && dotsAreThousands(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unrecognized amount %q", value)
	}
	return d, nil
}

// dotsAreThousands reports whether the dots in a digits-and-dots string
// are Chilean thousands marks: every group after the first has exactly
// three digits ("1.250.000", "45.000"). Anything else keeps the dot as
// a decimal point ("45.5").
func dotsAreThousands(s string) bool {
	groups := strings.Split(strings.TrimPrefix(s, "-"), ".")
	if len(groups) < 2 || groups[0] == "" || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// suggestNearest returns the display label of the indexed entry whose
// key ranks closest to the given key, or "" when nothing ranks.
func suggestNearest(key string, ix refIndex) string {
	ranks := fuzzy.RankFindNormalizedFold(key, ix.keys)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return ix.labels[best.Target]
}

// ValidateRows runs every field validator over every row and returns the
// ordered findings, including a positive confirmation for every checked
// field that passes. Rows are numbered from 1 in input order; within a
// row, findings follow canonical field order. Errors block processing,
// warnings do not: an unknown crane, operator or service type may still
// resolve through the transformer's fuzzy cascade.
func ValidateRows(rows []RawRow, mapping ColumnMapping, cache *ReferenceCache) []ValidationFinding {
	var findings []ValidationFinding
	for i, row := range rows {
		rowNum := i + 1
		findings = append(findings, validateRow(rowNum, row, mapping, cache)...)
	}
	return findings
}

func validateRow(rowNum int, row RawRow, mapping ColumnMapping, cache *ReferenceCache) []ValidationFinding {
	var fs []ValidationFinding
	add := func(field CanonicalField, level FindingLevel, value, msg, suggestion string) {
		fs = append(fs, ValidationFinding{
			Row: rowNum, Field: field, Level: level,
			Message: msg, Value: value, Suggestion: suggestion,
		})
	}

	// required presence
	for _, field := range requiredFields {
		if mapping.Value(row, field) == "" {
			add(field, LevelError, "", "required value is empty", "")
		}
	}

	if v := mapping.Value(row, FieldServiceDate); v != "" {
		if _, err := ParseDate(v); err != nil {
			add(FieldServiceDate, LevelError, v, "invalid date", "use DD/MM/YYYY")
		} else {
			add(FieldServiceDate, LevelValid, v, "date recognized", "")
		}
	}

	if v := mapping.Value(row, FieldCustomerTaxID); v != "" {
		switch {
		case !ValidTaxID(v):
			add(FieldCustomerTaxID, LevelError, v, "invalid RUT check digit", "")
		default:
			if _, ok := cache.customers.ids[NormalizeTaxID(v)]; !ok {
				add(FieldCustomerTaxID, LevelWarning, v, "customer not registered",
					suggestNearest(NormalizeTaxID(v), cache.customers))
			} else {
				add(FieldCustomerTaxID, LevelValid, v, "customer registered", "")
			}
		}
	}

	if v := mapping.Value(row, FieldServiceValue); v != "" {
		if _, err := ParseMoney(v); err != nil {
			add(FieldServiceValue, LevelError, v, "invalid amount", "")
		} else {
			add(FieldServiceValue, LevelValid, v, "amount recognized", "")
		}
	}

	if v := mapping.Value(row, FieldCranePlate); v != "" {
		if _, ok := cache.cranes.ids[NormalizePlate(v)]; !ok {
			add(FieldCranePlate, LevelWarning, v, "crane not registered",
				suggestNearest(NormalizePlate(v), cache.cranes))
		} else {
			add(FieldCranePlate, LevelValid, v, "crane registered", "")
		}
	}
	if v := mapping.Value(row, FieldOperatorName); v != "" {
		if _, ok := cache.operators.ids[NormalizeText(v)]; !ok {
			add(FieldOperatorName, LevelWarning, v, "operator not registered",
				suggestNearest(NormalizeText(v), cache.operators))
		} else {
			add(FieldOperatorName, LevelValid, v, "operator registered", "")
		}
	}
	if v := mapping.Value(row, FieldServiceType); v != "" {
		if _, ok := cache.serviceTypes.ids[NormalizeText(v)]; !ok {
			add(FieldServiceType, LevelWarning, v, "service type not registered",
				suggestNearest(NormalizeText(v), cache.serviceTypes))
		} else {
			add(FieldServiceType, LevelValid, v, "service type registered", "")
		}
	}

	return fs
}

// ValidationReport is the outcome of the analysis phase: the resolved
// column mapping, anything still missing, and every field-level finding
// in row order.
type ValidationReport struct {
	Mapping        ColumnMapping       `json:"mapping"`
	MissingColumns []CanonicalField    `json:"missingColumns,omitempty"`
	Findings       []ValidationFinding `json:"findings"`
	TotalRows      int                 `json:"totalRows"`
	ErrorCount     int                 `json:"errorCount"`
	WarningCount   int                 `json:"warningCount"`
	ValidCount     int                 `json:"validCount"`
	CanProcess     bool                `json:"canProcess"`
}

func buildReport(mapping ColumnMapping, missing []CanonicalField, findings []ValidationFinding, totalRows int) *ValidationReport {
	rep := &ValidationReport{
		Mapping:        mapping,
		MissingColumns: missing,
		Findings:       findings,
		TotalRows:      totalRows,
	}
	for _, f := range findings {
		switch f.Level {
		case LevelError:
			rep.ErrorCount++
		case LevelWarning:
			rep.WarningCount++
		case LevelValid:
			rep.ValidCount++
		}
	}
	rep.CanProcess = len(missing) == 0 && rep.ErrorCount == 0 && totalRows > 0
	return rep
}

// ValidationError refuses a batch whose validation phase produced
// error-level findings. The file must be corrected and re-analyzed
// before anything is written.
type ValidationError struct {
	ErrorCount int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation found %d blocking error(s); correct the file and retry", e.ErrorCount)
}
