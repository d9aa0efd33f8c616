// Package storage is the Postgres persistence layer for the import
// engine: reference-entity reads, duplicate pre-checks and service
// record inserts.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SergioIriarte666/gruas-sgg-manager/internal/migration"
)

// ErrNotFound is returned by the single-entity lookups when nothing
// matches.
var ErrNotFound = errors.New("not found")

// Repository wraps the connection pool with the queries the import
// engine needs. It implements migration.Directory and
// migration.RecordCreator.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveCustomers returns every customer the import may resolve
// against.
func (r *Repository) ListActiveCustomers(ctx context.Context) ([]migration.CustomerRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, tax_id
		FROM customers
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var refs []migration.CustomerRef
	for rows.Next() {
		var ref migration.CustomerRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.TaxID); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListActiveCranes returns every crane available for assignment.
func (r *Repository) ListActiveCranes(ctx context.Context) ([]migration.CraneRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, plate
		FROM cranes
		WHERE active
		ORDER BY plate`)
	if err != nil {
		return nil, fmt.Errorf("query cranes: %w", err)
	}
	defer rows.Close()

	var refs []migration.CraneRef
	for rows.Next() {
		var ref migration.CraneRef
		if err := rows.Scan(&ref.ID, &ref.Plate); err != nil {
			return nil, fmt.Errorf("scan crane: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListActiveOperators returns every operator available for assignment.
func (r *Repository) ListActiveOperators(ctx context.Context) ([]migration.OperatorRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM operators
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query operators: %w", err)
	}
	defer rows.Close()

	var refs []migration.OperatorRef
	for rows.Next() {
		var ref migration.OperatorRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListActiveServiceTypes returns every selectable service type.
func (r *Repository) ListActiveServiceTypes(ctx context.Context) ([]migration.ServiceTypeRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM service_types
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query service types: %w", err)
	}
	defer rows.Close()

	var refs []migration.ServiceTypeRef
	for rows.Next() {
		var ref migration.ServiceTypeRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan service type: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// CreateServiceRecord inserts one service record. The folio number is
// taken from the services_folio_seq default, so concurrent inserts never
// collide; the generated number comes back with RETURNING and is
// rendered as the display label.
func (r *Repository) CreateServiceRecord(ctx context.Context, rec *migration.ServiceRecord) (migration.CreatedRecord, error) {
	value := pgtype.Numeric{}
	if err := value.Scan(rec.Value.String()); err != nil {
		return migration.CreatedRecord{}, fmt.Errorf("convert value: %w", err)
	}

	var (
		id    uuid.UUID
		folio int64
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (
			service_date, customer_id, crane_id, operator_id, service_type_id,
			vehicle_make, vehicle_model, vehicle_plate,
			origin_location, destination_location,
			value, purchase_order, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, folio`,
		pgtype.Date{Time: rec.ServiceDate, Valid: true},
		rec.CustomerID, rec.CraneID, rec.OperatorID, rec.ServiceTypeID,
		rec.VehicleMake, rec.VehicleModel, rec.VehiclePlate,
		rec.Origin, rec.Destination,
		value, toPgText(rec.PurchaseOrder), toPgText(rec.Notes), string(rec.Status),
	).Scan(&id, &folio)
	if err != nil {
		return migration.CreatedRecord{}, fmt.Errorf("insert service: %w", err)
	}

	return migration.CreatedRecord{ID: id, Folio: FolioLabel(folio)}, nil
}

// FolioLabel renders a folio sequence number as its display form.
func FolioLabel(n int64) string {
	return fmt.Sprintf("SRV-%06d", n)
}

// Customer is the duplicate pre-check view of a customer.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	TaxID string    `json:"taxId"`
}

// FindCustomerByTaxID looks a customer up by RUT, comparing on the
// normalized form so stored formatting does not matter.
func (r *Repository) FindCustomerByTaxID(ctx context.Context, taxID string) (*Customer, error) {
	key := migration.NormalizeTaxID(taxID)
	if key == "" {
		return nil, ErrNotFound
	}
	var c Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, tax_id
		FROM customers
		WHERE lower(regexp_replace(tax_id, '[.\- ]', '', 'g')) = $1`,
		key,
	).Scan(&c.ID, &c.Name, &c.TaxID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}

// Crane is the duplicate pre-check view of a crane.
type Crane struct {
	ID    uuid.UUID `json:"id"`
	Plate string    `json:"plate"`
}

// FindCraneByPlate looks a crane up by plate on the normalized form.
func (r *Repository) FindCraneByPlate(ctx context.Context, plate string) (*Crane, error) {
	key := migration.NormalizePlate(plate)
	if key == "" {
		return nil, ErrNotFound
	}
	var c Crane
	err := r.pool.QueryRow(ctx, `
		SELECT id, plate
		FROM cranes
		WHERE upper(regexp_replace(plate, '[^a-zA-Z0-9]', '', 'g')) = $1`,
		key,
	).Scan(&c.ID, &c.Plate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find crane: %w", err)
	}
	return &c, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
