package migration

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PlateCollisionError signals that the towed vehicle's plate and the
// crane's plate normalize to the same key. Such a row would silently
// assign the crane as its own cargo, so it always fails.
type PlateCollisionError struct {
	VehiclePlate string
	CranePlate   string
	Key          string
}

func (e *PlateCollisionError) Error() string {
	return fmt.Sprintf("vehicle plate %q and crane plate %q resolve to the same identity %q",
		e.VehiclePlate, e.CranePlate, e.Key)
}

// UnresolvedError signals that a reference field could not be matched to
// any active entity, not even fuzzily.
type UnresolvedError struct {
	Field CanonicalField
	Value string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s %q does not match any active entity", e.Field, e.Value)
}

// serviceKeywordStems are word stems that identify the same kind of tow
// service across Spanish and English labels. Matching on stems lets
// "Servicio de Remolque" resolve against a registered "Remolque Local".
var serviceKeywordStems = []string{
	"remolq", "rescat", "traslad", "asistenc", "auxili",
	"tow", "rescue", "transfer", "roadside",
}

// sharesServiceKeyword reports whether two normalized service-type keys
// contain a common service keyword stem. This is the only place the stem
// list is consulted.
func sharesServiceKeyword(a, b string) bool {
	for _, stem := range serviceKeywordStems {
		if strings.Contains(a, stem) && strings.Contains(b, stem) {
			return true
		}
	}
	return false
}

// sharesNameTokens reports whether a searched person/company name and a
// cached one overlap enough to call them the same: at least two shared
// tokens, or every token of the shorter side when either side is a
// single word, with per-token match meaning equality, prefix, or
// containment for tokens of four or more characters.
func sharesNameTokens(search, cached string) bool {
	st := strings.Fields(search)
	ct := strings.Fields(cached)
	if len(st) == 0 || len(ct) == 0 {
		return false
	}

	short, long := st, ct
	if len(ct) < len(st) {
		short, long = ct, st
	}
	matched := 0
	for _, s := range short {
		for _, l := range long {
			if tokenMatches(s, l) {
				matched++
				break
			}
		}
	}
	if len(short) == 1 {
		return matched == 1
	}
	return matched >= 2
}

func tokenMatches(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return true
	}
	if len(a) >= 4 && len(b) >= 4 {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}
	return false
}

// resolveMode selects which fuzzy rules apply to an index.
type resolveMode int

const (
	resolvePlate resolveMode = iota
	resolveName
	resolveServiceType
)

// resolveFuzzy finds the entity whose key best corresponds to the search
// key. Rules run strictly in order, first match wins, and within a rule
// candidates are scanned in sorted key order so resolution is
// reproducible:
//
//  1. exact key equality
//  2. cached key contains the search key
//  3. search key contains the cached key (cached key length >= 4)
//  4. token overlap (names) / shared service keyword stem (service types)
func resolveFuzzy(key string, ix refIndex, mode resolveMode) (uuid.UUID, bool) {
	if key == "" {
		return uuid.Nil, false
	}
	if id, ok := ix.ids[key]; ok {
		return id, true
	}
	for _, k := range ix.keys {
		if strings.Contains(k, key) {
			return ix.ids[k], true
		}
	}
	for _, k := range ix.keys {
		if len(k) >= 4 && strings.Contains(key, k) {
			return ix.ids[k], true
		}
	}
	switch mode {
	case resolveName:
		for _, k := range ix.keys {
			if sharesNameTokens(key, k) {
				return ix.ids[k], true
			}
		}
	case resolveServiceType:
		for _, k := range ix.keys {
			if sharesServiceKeyword(key, k) {
				return ix.ids[k], true
			}
		}
	}
	return uuid.Nil, false
}

// Transformer turns validated raw rows into service records, resolving
// every reference against the cache. Customers resolve by exact RUT key
// only; cranes, operators and service types fall back to the fuzzy
// cascade.
type Transformer struct {
	mapping ColumnMapping
	cache   *ReferenceCache
}

func NewTransformer(mapping ColumnMapping, cache *ReferenceCache) *Transformer {
	return &Transformer{mapping: mapping, cache: cache}
}

// Transform builds the service record for one row. Any returned error
// describes this row alone and carries no row number; the batch
// processor adds positional context.
func (t *Transformer) Transform(row RawRow) (*ServiceRecord, error) {
	get := func(f CanonicalField) string { return t.mapping.Value(row, f) }

	vehiclePlate := get(FieldVehiclePlate)
	cranePlate := get(FieldCranePlate)
	vehicleKey := NormalizePlate(vehiclePlate)
	craneKey := NormalizePlate(cranePlate)
	if vehicleKey != "" && vehicleKey == craneKey {
		return nil, &PlateCollisionError{VehiclePlate: vehiclePlate, CranePlate: cranePlate, Key: vehicleKey}
	}

	taxID := get(FieldCustomerTaxID)
	customerID, ok := t.cache.customers.ids[NormalizeTaxID(taxID)]
	if !ok {
		return nil, &UnresolvedError{Field: FieldCustomerTaxID, Value: taxID}
	}

	craneID, ok := resolveFuzzy(craneKey, t.cache.cranes, resolvePlate)
	if !ok {
		return nil, &UnresolvedError{Field: FieldCranePlate, Value: cranePlate}
	}
	operator := get(FieldOperatorName)
	operatorID, ok := resolveFuzzy(NormalizeText(operator), t.cache.operators, resolveName)
	if !ok {
		return nil, &UnresolvedError{Field: FieldOperatorName, Value: operator}
	}
	serviceType := get(FieldServiceType)
	serviceTypeID, ok := resolveFuzzy(NormalizeText(serviceType), t.cache.serviceTypes, resolveServiceType)
	if !ok {
		return nil, &UnresolvedError{Field: FieldServiceType, Value: serviceType}
	}

	date, err := ParseDate(get(FieldServiceDate))
	if err != nil {
		return nil, err
	}

	rec := &ServiceRecord{
		ServiceDate:   date,
		CustomerID:    customerID,
		CraneID:       craneID,
		OperatorID:    operatorID,
		ServiceTypeID: serviceTypeID,
		VehicleMake:   get(FieldVehicleMake),
		VehicleModel:  get(FieldVehicleModel),
		VehiclePlate:  vehicleKey,
		Origin:        get(FieldOrigin),
		Destination:   get(FieldDestination),
		PurchaseOrder: get(FieldPurchaseOrder),
		Notes:         get(FieldNotes),
		Status:        StatusInProgress,
	}
	if v := get(FieldServiceValue); v != "" {
		amount, err := ParseMoney(v)
		if err != nil {
			return nil, err
		}
		rec.Value = amount
	}
	return rec, nil
}
