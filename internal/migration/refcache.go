package migration

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CustomerRef is one active customer as listed by the directory.
type CustomerRef struct {
	ID    uuid.UUID
	Name  string
	TaxID string
}

// CraneRef is one active crane.
type CraneRef struct {
	ID    uuid.UUID
	Plate string
}

// OperatorRef is one active operator.
type OperatorRef struct {
	ID   uuid.UUID
	Name string
}

// ServiceTypeRef is one active service type.
type ServiceTypeRef struct {
	ID   uuid.UUID
	Name string
}

// Directory lists the active reference entities an import may resolve
// against. Implemented by the storage repository.
type Directory interface {
	ListActiveCustomers(ctx context.Context) ([]CustomerRef, error)
	ListActiveCranes(ctx context.Context) ([]CraneRef, error)
	ListActiveOperators(ctx context.Context) ([]OperatorRef, error)
	ListActiveServiceTypes(ctx context.Context) ([]ServiceTypeRef, error)
}

// refIndex maps normalized keys to entity IDs. keys holds the same keys
// sorted lexicographically, so every scan over the index is
// deterministic. labels holds the original display form per key, used in
// suggestions and logs.
type refIndex struct {
	ids    map[string]uuid.UUID
	keys   []string
	labels map[string]string
}

func newRefIndex(size int) refIndex {
	return refIndex{
		ids:    make(map[string]uuid.UUID, size),
		labels: make(map[string]string, size),
	}
}

// add registers a key; empty keys are skipped and on duplicates the
// first entry wins.
func (ix *refIndex) add(key, label string, id uuid.UUID) {
	if key == "" {
		return
	}
	if _, exists := ix.ids[key]; exists {
		return
	}
	ix.ids[key] = id
	ix.labels[key] = label
}

func (ix *refIndex) seal() {
	ix.keys = make([]string, 0, len(ix.ids))
	for k := range ix.ids {
		ix.keys = append(ix.keys, k)
	}
	sort.Strings(ix.keys)
}

// ReferenceCache holds every active reference entity indexed by its
// normalized key. Built once per import, read-only afterward, so the
// sequential row loop resolves references without touching the database.
type ReferenceCache struct {
	customers    refIndex // key: NormalizeTaxID(tax id)
	cranes       refIndex // key: NormalizePlate(plate)
	operators    refIndex // key: NormalizeText(name)
	serviceTypes refIndex // key: NormalizeText(name)
}

// BuildReferenceCache loads the four reference sets concurrently and
// indexes them by normalized key. Any single read failure aborts the
// whole build: importing against a partial cache would mark existing
// entities as unknown.
func BuildReferenceCache(ctx context.Context, dir Directory) (*ReferenceCache, error) {
	cache := &ReferenceCache{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		refs, err := dir.ListActiveCustomers(ctx)
		if err != nil {
			return fmt.Errorf("listing customers: %w", err)
		}
		cache.customers = newRefIndex(len(refs))
		for _, r := range refs {
			cache.customers.add(NormalizeTaxID(r.TaxID), r.Name, r.ID)
		}
		return nil
	})
	g.Go(func() error {
		refs, err := dir.ListActiveCranes(ctx)
		if err != nil {
			return fmt.Errorf("listing cranes: %w", err)
		}
		cache.cranes = newRefIndex(len(refs))
		for _, r := range refs {
			cache.cranes.add(NormalizePlate(r.Plate), r.Plate, r.ID)
		}
		return nil
	})
	g.Go(func() error {
		refs, err := dir.ListActiveOperators(ctx)
		if err != nil {
			return fmt.Errorf("listing operators: %w", err)
		}
		cache.operators = newRefIndex(len(refs))
		for _, r := range refs {
			cache.operators.add(NormalizeText(r.Name), r.Name, r.ID)
		}
		return nil
	})
	g.Go(func() error {
		refs, err := dir.ListActiveServiceTypes(ctx)
		if err != nil {
			return fmt.Errorf("listing service types: %w", err)
		}
		cache.serviceTypes = newRefIndex(len(refs))
		for _, r := range refs {
			cache.serviceTypes.add(NormalizeText(r.Name), r.Name, r.ID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building reference cache: %w", err)
	}

	cache.customers.seal()
	cache.cranes.seal()
	cache.operators.seal()
	cache.serviceTypes.seal()
	return cache, nil
}

// Counts reports the number of indexed entities per set, for logging.
func (c *ReferenceCache) Counts() (customers, cranes, operators, serviceTypes int) {
	return len(c.customers.ids), len(c.cranes.ids), len(c.operators.ids), len(c.serviceTypes.ids)
}
