package concurrency

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"stagehand/log"
)

// EnvSequential forces every BatchExecutor into sequential mode when set to
// "true" or "1".
const EnvSequential = "STAGEHAND_SEQUENTIAL"

// DefaultBatchConcurrency is the cap used when none is configured.
const DefaultBatchConcurrency = 4

// BatchOperation is a flat, dependency-free unit of work.
type BatchOperation struct {
	Name string
	Run  func(ctx context.Context) error
}

// BatchOperationResult records the outcome of a single batch operation.
type BatchOperationResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Success returns true if the operation succeeded.
func (r *BatchOperationResult) Success() bool {
	return r.Err == nil
}

// Batch is a named, ordered list of flat operations.
type Batch struct {
	Name       string
	Operations []BatchOperation
}

// BatchResult aggregates per-operation outcomes for one batch.
type BatchResult struct {
	Name      string
	Results   []*BatchOperationResult
	Total     int
	Succeeded int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

func newBatchResult(name string) *BatchResult {
	return &BatchResult{
		Name:      name,
		Results:   make([]*BatchOperationResult, 0),
		StartTime: time.Now(),
	}
}

func (br *BatchResult) addResult(result *BatchOperationResult) {
	br.Results = append(br.Results, result)
	br.Total++
	if result.Success() {
		br.Succeeded++
	} else {
		br.Failed++
	}
}

// Complete marks the batch as finished.
func (br *BatchResult) Complete() {
	br.EndTime = time.Now()
}

// Duration returns the total wall time of the batch.
func (br *BatchResult) Duration() time.Duration {
	if br.EndTime.IsZero() {
		return time.Since(br.StartTime)
	}
	return br.EndTime.Sub(br.StartTime)
}

// AllSucceeded returns true if every operation succeeded.
func (br *BatchResult) AllSucceeded() bool {
	return br.Failed == 0 && br.Total > 0
}

// SuccessRate returns the success rate as a percentage.
func (br *BatchResult) SuccessRate() float64 {
	if br.Total == 0 {
		return 0
	}
	return float64(br.Succeeded) / float64(br.Total) * 100
}

// Err returns an aggregated error joining all failures, or nil if every
// operation succeeded.
func (br *BatchResult) Err() error {
	if br.Failed == 0 {
		return nil
	}
	errs := make([]error, 0, br.Failed)
	for _, result := range br.Results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", result.Name, result.Err))
		}
	}
	return &AggregateError{Errors: errs}
}

// BatchExecutor executes flat operation lists under a concurrency cap, or
// sequentially. Workspace setup needs all-or-nothing success, so the
// parallel mode defers individual failures into one aggregated error
// instead of short-circuiting siblings.
type BatchExecutor struct {
	maxConcurrency int
	sequential     bool
}

// NewBatchExecutor creates a batch executor with the given cap. The
// STAGEHAND_SEQUENTIAL environment toggle forces sequential mode.
func NewBatchExecutor(maxConcurrency int) *BatchExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultBatchConcurrency
	}
	sequential := os.Getenv(EnvSequential)
	return &BatchExecutor{
		maxConcurrency: maxConcurrency,
		sequential:     sequential == "true" || sequential == "1",
	}
}

// SetSequential explicitly enables or disables sequential mode.
func (be *BatchExecutor) SetSequential(sequential bool) {
	be.sequential = sequential
}

// ExecuteParallel runs ops with at most maxConcurrency in flight, admitting
// them in list order. Every operation runs to completion regardless of its
// siblings' outcomes; if any failed, the aggregated error is returned after
// all have finished. Sequential mode and lists of length <= 1 delegate to
// ExecuteSequential.
func (be *BatchExecutor) ExecuteParallel(ctx context.Context, ops []BatchOperation) (*BatchResult, error) {
	if be.sequential || len(ops) <= 1 {
		return be.ExecuteSequential(ctx, ops)
	}

	result := newBatchResult("")
	results := make([]*BatchOperationResult, len(ops))

	semaphore := make(chan struct{}, be.maxConcurrency)
	var wg sync.WaitGroup

	for i, op := range ops {
		semaphore <- struct{}{}
		wg.Add(1)
		go func(i int, op BatchOperation) {
			defer wg.Done()
			defer func() { <-semaphore }()

			start := time.Now()
			err := op.Run(ctx)
			if err != nil {
				log.WarningLog.Printf("batch operation %s failed: %v", op.Name, err)
			}
			results[i] = &BatchOperationResult{
				Name:     op.Name,
				Err:      err,
				Duration: time.Since(start),
			}
		}(i, op)
	}
	wg.Wait()

	for _, r := range results {
		result.addResult(r)
	}
	result.Complete()

	if err := result.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// ExecuteSequential runs ops in strict list order, stopping at the first
// failure and propagating it.
func (be *BatchExecutor) ExecuteSequential(ctx context.Context, ops []BatchOperation) (*BatchResult, error) {
	result := newBatchResult("")

	for _, op := range ops {
		start := time.Now()
		err := op.Run(ctx)
		result.addResult(&BatchOperationResult{
			Name:     op.Name,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil {
			result.Complete()
			return result, fmt.Errorf("operation %q failed: %w", op.Name, err)
		}
	}

	result.Complete()
	return result, nil
}

// ExecuteBatches runs named batches strictly in declaration order, applying
// ExecuteParallel within each. A batch failure aborts all subsequent
// batches.
func (be *BatchExecutor) ExecuteBatches(ctx context.Context, batches []Batch) ([]*BatchResult, error) {
	results := make([]*BatchResult, 0, len(batches))

	for _, batch := range batches {
		log.InfoLog.Printf("executing batch %s (%d operations)", batch.Name, len(batch.Operations))
		result, err := be.ExecuteParallel(ctx, batch.Operations)
		result.Name = batch.Name
		results = append(results, result)
		if err != nil {
			return results, fmt.Errorf("batch %q failed: %w", batch.Name, err)
		}
	}

	return results, nil
}

// PerformanceStats aggregates timing and success figures across batches.
type PerformanceStats struct {
	TotalOperations int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	SuccessRate     float64
}

// CalculatePerformanceStats is a pure aggregation over batch results; it has
// no side effects.
func CalculatePerformanceStats(results []*BatchResult) PerformanceStats {
	var stats PerformanceStats
	succeeded := 0

	for _, batch := range results {
		for _, result := range batch.Results {
			stats.TotalOperations++
			stats.TotalDuration += result.Duration
			if result.Success() {
				succeeded++
			}
		}
	}

	if stats.TotalOperations > 0 {
		stats.AverageDuration = stats.TotalDuration / time.Duration(stats.TotalOperations)
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalOperations) * 100
	}
	return stats
}
