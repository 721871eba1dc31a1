package workspace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stagehand/concurrency"
	"stagehand/config"
	"stagehand/log"
)

// InitResult summarizes one workspace init run.
type InitResult struct {
	RunID    string
	Results  map[string]*concurrency.OperationResult
	Duration time.Duration
}

// Succeeded counts operations that reached a successful terminal state,
// graceful failures included.
func (r *InitResult) Succeeded() int {
	count := 0
	for _, result := range r.Results {
		if result.Success {
			count++
		}
	}
	return count
}

// Init prepares the workspace described by cfg: it registers the init
// operation set with a fresh executor and runs it to completion. The
// returned result carries whatever terminal results were recorded, even
// when the run was aborted.
func Init(ctx context.Context, cfg *config.Config, resolver *Resolver) (*InitResult, error) {
	runID := uuid.NewString()
	spec := SpecFromConfig(cfg)
	log.InfoLog.Printf("workspace init %s: %d repositories under %s", runID, len(spec.Repos), spec.Root)

	executor := concurrency.NewExecutor()
	for _, op := range BuildInitOperations(spec, resolver) {
		if err := executor.Register(op); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	results, err := executor.ExecuteAll(ctx)
	initResult := &InitResult{
		RunID:    runID,
		Results:  results,
		Duration: time.Since(start),
	}
	if err != nil {
		log.ErrorLog.Printf("workspace init %s failed after %v: %v", runID, initResult.Duration, err)
		return initResult, err
	}

	log.InfoLog.Printf("workspace init %s completed in %v (%d/%d succeeded)",
		runID, initResult.Duration, initResult.Succeeded(), len(results))
	return initResult, nil
}
