package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeCreator persists nothing and hands out sequential folios, failing
// on demand for specific vehicle plates.
type fakeCreator struct {
	created   []*ServiceRecord
	failPlate string
	next      int
}

func (c *fakeCreator) CreateServiceRecord(_ context.Context, rec *ServiceRecord) (CreatedRecord, error) {
	if c.failPlate != "" && rec.VehiclePlate == c.failPlate {
		return CreatedRecord{}, errors.New("unique constraint violation")
	}
	c.next++
	c.created = append(c.created, rec)
	return CreatedRecord{ID: mustUUID("00000000-0000-0000-0000-0000000000ff"), Folio: fmt.Sprintf("SRV-%06d", c.next)}, nil
}

func TestProcessorRun(t *testing.T) {
	newRows := func(n int) []RawRow {
		rows := make([]RawRow, n)
		for i := range rows {
			row := validTestRow()
			row["Patente"] = fmt.Sprintf("XY-ZW%02d", i)
			rows[i] = row
		}
		return rows
	}

	t.Run("one outcome per row in order", func(t *testing.T) {
		tr := testTransformer(t)
		creator := &fakeCreator{}
		p := NewProcessor(tr, creator, nil)

		rows := newRows(3)
		rows[1]["Fecha"] = "no es fecha" // fails in transform

		result := p.Run(context.Background(), "batch-1", rows)
		if len(result.Outcomes) != 3 {
			t.Fatalf("outcomes = %d, want 3", len(result.Outcomes))
		}
		if result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf("succeeded = %d, failed = %d", result.Succeeded, result.Failed)
		}
		if !result.Outcomes[0].Success || result.Outcomes[1].Success || !result.Outcomes[2].Success {
			t.Errorf("outcome order wrong: %+v", result.Outcomes)
		}
		if !strings.HasPrefix(result.Outcomes[1].Error, "row 2: ") {
			t.Errorf("failure not row-prefixed: %q", result.Outcomes[1].Error)
		}
		if result.Outcomes[0].Folio != "SRV-000001" {
			t.Errorf("folio = %q", result.Outcomes[0].Folio)
		}
	})

	t.Run("insert failure isolates the row", func(t *testing.T) {
		tr := testTransformer(t)
		creator := &fakeCreator{failPlate: "XYZW01"}
		p := NewProcessor(tr, creator, nil)

		result := p.Run(context.Background(), "batch-2", newRows(3))
		if result.Succeeded != 2 || result.Failed != 1 {
			t.Fatalf("succeeded = %d, failed = %d", result.Succeeded, result.Failed)
		}
		if !strings.Contains(result.Outcomes[1].Error, "creating record") {
			t.Errorf("outcome error = %q", result.Outcomes[1].Error)
		}
		if len(creator.created) != 2 {
			t.Errorf("created = %d records", len(creator.created))
		}
	})

	t.Run("progress is monotonic and finishes at hundred", func(t *testing.T) {
		tr := testTransformer(t)
		var snaps []Progress
		p := NewProcessor(tr, &fakeCreator{}, func(pr Progress) { snaps = append(snaps, pr) })

		p.Run(context.Background(), "batch-3", newRows(4))
		if len(snaps) == 0 {
			t.Fatal("no progress snapshots")
		}
		for i := 1; i < len(snaps); i++ {
			if snaps[i].Processed < snaps[i-1].Processed {
				t.Fatalf("Processed decreased at %d: %+v", i, snaps)
			}
			if snaps[i].Percent < snaps[i-1].Percent {
				t.Fatalf("Percent decreased at %d: %+v", i, snaps)
			}
		}
		last := snaps[len(snaps)-1]
		if !last.Finished || last.Percent != 100 || last.Processed != 4 {
			t.Errorf("final snapshot = %+v", last)
		}
		finished := 0
		for _, s := range snaps {
			if s.Finished {
				finished++
			}
		}
		if finished != 1 {
			t.Errorf("Finished set in %d snapshots, want exactly 1", finished)
		}
	})

	t.Run("empty batch finishes immediately", func(t *testing.T) {
		tr := testTransformer(t)
		var last Progress
		p := NewProcessor(tr, &fakeCreator{}, func(pr Progress) { last = pr })

		result := p.Run(context.Background(), "batch-4", nil)
		if len(result.Outcomes) != 0 || result.TotalRows != 0 {
			t.Errorf("result = %+v", result)
		}
		if !last.Finished || last.Percent != 100 {
			t.Errorf("final progress = %+v", last)
		}
	})

	t.Run("cancellation fails remaining rows without dropping them", func(t *testing.T) {
		tr := testTransformer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewProcessor(tr, &fakeCreator{}, nil)

		result := p.Run(ctx, "batch-5", newRows(3))
		if len(result.Outcomes) != 3 {
			t.Fatalf("outcomes = %d, want 3", len(result.Outcomes))
		}
		if result.Failed != 3 {
			t.Errorf("failed = %d, want 3", result.Failed)
		}
		for i, o := range result.Outcomes {
			if !strings.HasPrefix(o.Error, fmt.Sprintf("row %d: ", i+1)) {
				t.Errorf("outcome %d = %+v", i, o)
			}
		}
	})
}

func TestPercent(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
		{0, 0, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.processed, tt.total); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.processed, tt.total, got, tt.want)
		}
	}
}
