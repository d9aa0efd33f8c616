package migration

import (
	"fmt"
	"strings"
)

// columnAliases lists, per canonical field, the header spellings seen in
// the field across customers' historical spreadsheets. Matching is done
// on normalized text, so accents, case and punctuation in the actual
// header are irrelevant. Order within a list does not matter; the first
// header in the file that normalizes to any alias wins.
var columnAliases = map[CanonicalField][]string{
	FieldServiceDate:   {"fecha", "fecha servicio", "fecha de servicio", "date", "service date"},
	FieldVehicleMake:   {"marca", "marca vehiculo", "marca del vehiculo", "make", "brand"},
	FieldVehicleModel:  {"modelo", "modelo vehiculo", "modelo del vehiculo", "model"},
	FieldVehiclePlate:  {"patente", "patente vehiculo", "placa", "placa patente", "plate", "license plate"},
	FieldOrigin:        {"origen", "direccion origen", "lugar origen", "desde", "origin", "from"},
	FieldDestination:   {"destino", "direccion destino", "lugar destino", "hasta", "destination", "to"},
	FieldCustomerName:  {"cliente", "nombre cliente", "razon social", "customer", "customer name"},
	FieldCustomerTaxID: {"rut", "rut cliente", "rut del cliente", "tax id", "customer tax id"},
	FieldCranePlate:    {"grua", "patente grua", "patente de la grua", "crane", "crane plate"},
	FieldOperatorName:  {"operador", "nombre operador", "operador grua", "chofer", "conductor", "operator", "operator name", "driver"},
	FieldServiceType:   {"tipo servicio", "tipo de servicio", "servicio", "service type", "tipo"},
	FieldServiceValue:  {"valor", "valor servicio", "monto", "precio", "tarifa", "value", "amount", "service value"},
	FieldPurchaseOrder: {"orden compra", "orden de compra", "oc", "po", "purchase order"},
	FieldNotes:         {"observaciones", "observacion", "notas", "comentarios", "notes", "comments"},
}

// requiredFields are the canonical fields that must resolve to a column
// before a file can be processed. Customer name, value, purchase order
// and notes are optional: the customer is resolved by RUT alone and the
// rest default to empty.
var requiredFields = []CanonicalField{
	FieldServiceDate,
	FieldVehicleMake,
	FieldVehicleModel,
	FieldVehiclePlate,
	FieldOrigin,
	FieldDestination,
	FieldCustomerTaxID,
	FieldCranePlate,
	FieldOperatorName,
	FieldServiceType,
}

// MissingColumnsError reports the required canonical fields for which no
// header in the file matched any known alias.
type MissingColumnsError struct {
	Missing []CanonicalField
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// canonicalKey is the normalized form a header must match for a field's
// own canonical name (underscores read as spaces, so a literal
// "Service Date" header maps too).
func canonicalKey(f CanonicalField) string {
	return NormalizeText(strings.ReplaceAll(string(f), "_", " "))
}

// MapColumns resolves the file's header row against the alias lists and
// returns the canonical-field → header mapping. Each header is consumed
// at most once, scanning headers in file order per field; the canonical
// name itself always matches. A *MissingColumnsError is returned
// alongside the partial mapping when required fields stay unresolved, so
// callers can still report what DID match.
func MapColumns(headers []string) (ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeText(h)
	}

	used := make(map[int]bool, len(headers))
	mapping := make(ColumnMapping, len(columnAliases))
	for _, field := range fieldOrder {
		keys := map[string]bool{canonicalKey(field): true}
		for _, alias := range columnAliases[field] {
			keys[NormalizeText(alias)] = true
		}
		for i, n := range normalized {
			if n == "" || used[i] || !keys[n] {
				continue
			}
			mapping[field] = headers[i]
			used[i] = true
			break
		}
	}

	var missing []CanonicalField
	for _, f := range requiredFields {
		if _, ok := mapping[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return mapping, &MissingColumnsError{Missing: missing}
	}
	return mapping, nil
}

// fieldOrder fixes the resolution order so fields contending for the
// same header resolve the same way on every run. Crane plate resolves
// before vehicle plate: "patente grua" must never be stolen by the
// vehicle's bare "patente" alias.
var fieldOrder = []CanonicalField{
	FieldServiceDate,
	FieldCranePlate,
	FieldVehiclePlate,
	FieldVehicleMake,
	FieldVehicleModel,
	FieldOrigin,
	FieldDestination,
	FieldCustomerTaxID,
	FieldCustomerName,
	FieldOperatorName,
	FieldServiceType,
	FieldServiceValue,
	FieldPurchaseOrder,
	FieldNotes,
}
