// Package migration implements the bulk-import pipeline that turns
// historical service spreadsheets into validated service records.
// This package has no HTTP or UI dependencies and can be driven by any
// frontend: column mapping, field validation, reference resolution,
// row transformation and batch processing all live here.
package migration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRow is one spreadsheet line, keyed by the original header strings
// exactly as they appear in the uploaded file. Rows are never mutated
// after parsing; all cleanup happens on read.
type RawRow map[string]string

// CanonicalField is one of the fixed, pipeline-internal field names that
// every accepted spreadsheet column must map to.
type CanonicalField string

const (
	FieldServiceDate   CanonicalField = "service_date"
	FieldVehicleMake   CanonicalField = "vehicle_make"
	FieldVehicleModel  CanonicalField = "vehicle_model"
	FieldVehiclePlate  CanonicalField = "vehicle_plate"
	FieldOrigin        CanonicalField = "origin_location"
	FieldDestination   CanonicalField = "destination_location"
	FieldCustomerName  CanonicalField = "customer_name"
	FieldCustomerTaxID CanonicalField = "customer_tax_id"
	FieldCranePlate    CanonicalField = "crane_plate"
	FieldOperatorName  CanonicalField = "operator_name"
	FieldServiceType   CanonicalField = "service_type"
	FieldServiceValue  CanonicalField = "service_value"
	FieldPurchaseOrder CanonicalField = "purchase_order"
	FieldNotes         CanonicalField = "notes"
)

// ColumnMapping maps canonical field names to the actual header strings
// present in the uploaded file. Built once per file by MapColumns and
// immutable afterward.
type ColumnMapping map[CanonicalField]string

// Value extracts the cleaned cell value for a canonical field from a row.
// Returns "" when the field is unmapped or the cell is absent.
func (m ColumnMapping) Value(row RawRow, field CanonicalField) string {
	header, ok := m[field]
	if !ok {
		return ""
	}
	return CleanCell(row[header])
}

// FindingLevel classifies a validation finding.
type FindingLevel string

const (
	LevelError   FindingLevel = "error"
	LevelWarning FindingLevel = "warning"
	LevelValid   FindingLevel = "valid"
)

// ValidationFinding is a single field-level check result produced during
// the validation phase. Findings are immutable once created.
type ValidationFinding struct {
	Row        int            `json:"row"`
	Field      CanonicalField `json:"field"`
	Level      FindingLevel   `json:"level"`
	Message    string         `json:"message"`
	Value      string         `json:"value,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// ServiceStatus is the lifecycle state of a service record.
type ServiceStatus string

// StatusInProgress is the initial state of every imported record.
const StatusInProgress ServiceStatus = "in_progress"

// ServiceRecord is the fully resolved, typed output of transforming one
// row. The pipeline hands it to the record creator and never mutates it
// again.
type ServiceRecord struct {
	ServiceDate   time.Time
	CustomerID    uuid.UUID
	CraneID       uuid.UUID
	OperatorID    uuid.UUID
	ServiceTypeID uuid.UUID
	VehicleMake   string
	VehicleModel  string
	VehiclePlate  string // normalized plate key
	Origin        string
	Destination   string
	Value         decimal.Decimal
	PurchaseOrder string
	Notes         string
	Status        ServiceStatus
}

// CreatedRecord is what the storage layer reports back after persisting
// a service record. Folio is the human-readable running number assigned
// atomically at insert time.
type CreatedRecord struct {
	ID    uuid.UUID
	Folio string
}

// RecordCreator persists one transformed service record.
// Implemented by the storage repository.
type RecordCreator interface {
	CreateServiceRecord(ctx context.Context, rec *ServiceRecord) (CreatedRecord, error)
}

// RowOutcome records what happened to one input row. Exactly one outcome
// exists per row, in input order, regardless of success or failure.
type RowOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Folio   string `json:"folio,omitempty"`
}

// Progress is the live state of a running batch. Only the batch
// processor mutates it, from a single goroutine; Percent and Processed
// never decrease and Finished flips to true exactly once.
type Progress struct {
	Started    bool   `json:"started"`
	Finished   bool   `json:"finished"`
	Percent    int    `json:"percent"`
	Processed  int    `json:"processed"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	CurrentRow string `json:"currentRow,omitempty"`
}

// BatchResult is the final summary of a batch run. The outcome list,
// with errors prefixed by 1-based row numbers, is the complete audit
// trail of the import.
type BatchResult struct {
	BatchID   string        `json:"batchId"`
	FileName  string        `json:"fileName,omitempty"`
	TotalRows int           `json:"totalRows"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []RowOutcome  `json:"outcomes"`
	Duration  time.Duration `json:"duration"`
}
