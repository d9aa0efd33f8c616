package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ImportTimeout is the maximum duration for a single import batch.
var ImportTimeout = 10 * time.Minute

// ResultRetention is how long a finished batch stays queryable.
var ResultRetention = 30 * time.Minute

// Service coordinates import batches: analysis, asynchronous processing
// and progress subscriptions. One Service instance serves the whole
// process.
type Service struct {
	dir     Directory
	creator RecordCreator
	log     *slog.Logger

	mu      sync.RWMutex
	batches map[string]*activeBatch
}

type activeBatch struct {
	ID         string
	FileName   string
	Cancel     context.CancelFunc
	Progress   Progress
	Result     *BatchResult
	Done       chan struct{}
	Listeners  []chan Progress
	ListenerMu sync.Mutex
}

func NewService(dir Directory, creator RecordCreator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		dir:     dir,
		creator: creator,
		log:     log,
		batches: make(map[string]*activeBatch),
	}
}

// AnalyzeImport runs the read-only validation phase over a parsed file:
// column mapping, reference-cache build and every field validator. No
// rows are written. The returned report tells the caller whether the
// file can be processed and exactly what needs fixing.
func (s *Service) AnalyzeImport(ctx context.Context, headers []string, rows []RawRow) (*ValidationReport, error) {
	cache, err := BuildReferenceCache(ctx, s.dir)
	if err != nil {
		return nil, err
	}

	mapping, err := MapColumns(headers)
	var missing []CanonicalField
	if err != nil {
		var mc *MissingColumnsError
		if !errors.As(err, &mc) {
			return nil, err
		}
		missing = mc.Missing
	}

	var findings []ValidationFinding
	if len(missing) == 0 {
		findings = ValidateRows(rows, mapping, cache)
	}
	return buildReport(mapping, missing, findings, len(rows)), nil
}

// StartImport begins processing a parsed file in the background and
// returns the batch ID immediately. Validation runs again before any
// row is written: a batch carrying error-level findings is refused with
// a *ValidationError. Use SubscribeProgress or GetProgress to follow it
// and GetResult to collect the outcome list.
func (s *Service) StartImport(ctx context.Context, fileName string, headers []string, rows []RawRow) (string, error) {
	cache, err := BuildReferenceCache(ctx, s.dir)
	if err != nil {
		return "", err
	}
	mapping, err := MapColumns(headers)
	if err != nil {
		return "", err
	}

	errorCount := 0
	for _, f := range ValidateRows(rows, mapping, cache) {
		if f.Level == LevelError {
			errorCount++
		}
	}
	if errorCount > 0 {
		return "", &ValidationError{ErrorCount: errorCount}
	}

	batchID := uuid.New().String()
	batchCtx, cancel := context.WithTimeout(context.Background(), ImportTimeout)

	batch := &activeBatch{
		ID:        batchID,
		FileName:  fileName,
		Cancel:    cancel,
		Done:      make(chan struct{}),
		Listeners: make([]chan Progress, 0),
	}

	s.mu.Lock()
	s.batches[batchID] = batch
	s.mu.Unlock()

	go s.processBatch(batchCtx, batch, mapping, cache, rows)

	return batchID, nil
}

func (s *Service) processBatch(ctx context.Context, batch *activeBatch, mapping ColumnMapping, cache *ReferenceCache, rows []RawRow) {
	defer batch.Cancel()

	customers, cranes, operators, types := cache.Counts()
	s.log.Info("import started",
		"batchId", batch.ID,
		"file", batch.FileName,
		"rows", len(rows),
		"customers", customers,
		"cranes", cranes,
		"operators", operators,
		"serviceTypes", types,
	)

	transformer := NewTransformer(mapping, cache)
	processor := NewProcessor(transformer, s.creator, func(p Progress) {
		batch.ListenerMu.Lock()
		batch.Progress = p
		for _, ch := range batch.Listeners {
			select {
			case ch <- p:
			default:
				// listener is slow, skip this update
			}
		}
		batch.ListenerMu.Unlock()
	})

	result := processor.Run(ctx, batch.ID, rows)
	result.FileName = batch.FileName

	batch.Result = result
	close(batch.Done)
	batch.closeListeners()

	s.log.Info("import finished",
		"batchId", batch.ID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	s.cleanup(batch.ID, ResultRetention)
}

// SubscribeProgress returns a channel receiving progress snapshots for
// the batch. The current snapshot is delivered immediately and the
// channel is closed when the batch finishes. Subscribing to an already
// finished batch yields the final snapshot on a closed channel.
func (s *Service) SubscribeProgress(batchID string) (<-chan Progress, error) {
	batch, err := s.batch(batchID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)

	batch.ListenerMu.Lock()
	select {
	case <-batch.Done:
		// finished: closeListeners already ran or will not see this
		// channel, so close it here
		final := batch.Progress
		batch.ListenerMu.Unlock()
		ch <- final
		close(ch)
		return ch, nil
	default:
	}
	batch.Listeners = append(batch.Listeners, ch)
	select {
	case ch <- batch.Progress:
	default:
	}
	batch.ListenerMu.Unlock()

	return ch, nil
}

// GetProgress returns the current progress snapshot without blocking.
func (s *Service) GetProgress(batchID string) (Progress, error) {
	batch, err := s.batch(batchID)
	if err != nil {
		return Progress{}, err
	}
	batch.ListenerMu.Lock()
	defer batch.ListenerMu.Unlock()
	return batch.Progress, nil
}

// GetResult blocks until the batch completes and returns its result.
func (s *Service) GetResult(ctx context.Context, batchID string) (*BatchResult, error) {
	batch, err := s.batch(batchID)
	if err != nil {
		return nil, err
	}
	select {
	case <-batch.Done:
		return batch.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) batch(batchID string) (*activeBatch, error) {
	s.mu.RLock()
	batch, ok := s.batches[batchID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}
	return batch, nil
}

// closeListeners closes all listener channels.
func (batch *activeBatch) closeListeners() {
	batch.ListenerMu.Lock()
	defer batch.ListenerMu.Unlock()
	for _, ch := range batch.Listeners {
		close(ch)
	}
	batch.Listeners = nil
}

// cleanup drops the batch from tracking after the retention window.
func (s *Service) cleanup(batchID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.batches, batchID)
		s.mu.Unlock()
	})
}
