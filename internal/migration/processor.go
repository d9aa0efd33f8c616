package migration

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// ProgressFunc receives a snapshot of the batch progress. Called from
// the processing goroutine; implementations must not block.
type ProgressFunc func(Progress)

// Processor runs one import batch: rows are processed strictly
// sequentially and each row either becomes a persisted service record or
// a recorded failure. A failing row never stops the batch.
type Processor struct {
	transformer *Transformer
	creator     RecordCreator
	notify      ProgressFunc
}

func NewProcessor(transformer *Transformer, creator RecordCreator, notify ProgressFunc) *Processor {
	if notify == nil {
		notify = func(Progress) {}
	}
	return &Processor{transformer: transformer, creator: creator, notify: notify}
}

// rowLabel is the short description of the row shown in live progress.
func rowLabel(mapping ColumnMapping, row RawRow) string {
	parts := make([]string, 0, 2)
	if mk := mapping.Value(row, FieldVehicleMake); mk != "" {
		parts = append(parts, mk)
	}
	if plate := mapping.Value(row, FieldVehiclePlate); plate != "" {
		parts = append(parts, plate)
	}
	return strings.Join(parts, " ")
}

func percent(processed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

// Run processes every row and returns the batch result with exactly one
// outcome per input row, in input order. Progress snapshots are emitted
// before and after each row; Processed and Percent never decrease, and
// the final snapshot has Finished set. Context cancellation fails the
// remaining rows instead of dropping them, so the outcome count
// invariant holds even on shutdown.
func (p *Processor) Run(ctx context.Context, batchID string, rows []RawRow) *BatchResult {
	start := time.Now()
	total := len(rows)
	prog := Progress{Started: true}
	p.notify(prog)

	result := &BatchResult{
		BatchID:   batchID,
		TotalRows: total,
		Outcomes:  make([]RowOutcome, 0, total),
	}

	for i, row := range rows {
		rowNum := i + 1

		var outcome RowOutcome
		if err := ctx.Err(); err != nil {
			outcome = RowOutcome{Error: fmt.Sprintf("row %d: %v", rowNum, err)}
		} else {
			prog.CurrentRow = rowLabel(p.transformer.mapping, row)
			p.notify(prog)
			outcome = p.processRow(ctx, rowNum, row)
		}

		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)

		prog.Processed = rowNum
		prog.Succeeded = result.Succeeded
		prog.Failed = result.Failed
		prog.Percent = percent(rowNum, total)
		p.notify(prog)
	}

	prog.Finished = true
	prog.Percent = 100
	prog.CurrentRow = ""
	p.notify(prog)

	result.Duration = time.Since(start)
	return result
}

// processRow transforms and persists a single row. Every failure path
// produces an outcome with the row number prefixed, so the result list
// reads as a standalone report.
func (p *Processor) processRow(ctx context.Context, rowNum int, row RawRow) RowOutcome {
	rec, err := p.transformer.Transform(row)
	if err != nil {
		return RowOutcome{Error: fmt.Sprintf("row %d: %v", rowNum, err)}
	}
	created, err := p.creator.CreateServiceRecord(ctx, rec)
	if err != nil {
		return RowOutcome{Error: fmt.Sprintf("row %d: creating record: %v", rowNum, err)}
	}
	return RowOutcome{Success: true, Folio: created.Folio}
}
