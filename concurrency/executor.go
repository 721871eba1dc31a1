package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stagehand/log"
)

// Priority classifies how an operation's terminal failure affects the run
// and how executeInParallel orders its waves.
type Priority int

const (
	// PriorityBackground operations are best-effort; failures never block
	// the run.
	PriorityBackground Priority = iota
	// PriorityNormal operations record failures without aborting the run.
	PriorityNormal
	// PriorityCritical operations abort the entire run on fatal failure.
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityNormal:
		return "normal"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// OperationFunc is the body of an operation. It must honor ctx cancellation
// to benefit from timeouts; a body that ignores ctx is abandoned, not killed.
type OperationFunc func(ctx context.Context) (interface{}, error)

// ErrorHandler inspects an operation's terminal error after all attempts are
// exhausted. Returning true downgrades the failure to a graceful one that
// still satisfies dependents.
type ErrorHandler func(err error) bool

// Operation is a unit of work with dependency, retry, and timeout policy.
type Operation struct {
	ID          string
	Description string
	Priority    Priority
	DependsOn   []string
	// Retries is the number of re-attempts after the first failure; total
	// attempts = Retries + 1.
	Retries int
	// Timeout bounds a single attempt; zero means unbounded.
	Timeout time.Duration
	Run     OperationFunc
	OnError ErrorHandler
}

// OperationResult records the terminal outcome of one operation.
type OperationResult struct {
	ID              string
	Success         bool
	Value           interface{}
	Err             error
	Duration        time.Duration
	Attempts        int
	GracefulFailure bool
}

const defaultBaseDelay = 100 * time.Millisecond

// Executor runs a registered operation set to completion, honoring declared
// dependencies and priority classes while maximizing concurrency. Each
// instance owns its registration, result, and running state exclusively.
type Executor struct {
	mu        sync.Mutex
	ops       map[string]*Operation
	results   map[string]*OperationResult
	running   map[string]bool
	baseDelay time.Duration
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{
		ops:       make(map[string]*Operation),
		results:   make(map[string]*OperationResult),
		running:   make(map[string]bool),
		baseDelay: defaultBaseDelay,
	}
}

// Register adds an operation. Registering an id again replaces the prior
// registration.
func (e *Executor) Register(op *Operation) error {
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}
	if op.ID == "" {
		return fmt.Errorf("operation id cannot be empty")
	}
	if op.Run == nil {
		return fmt.Errorf("operation %q has no body", op.ID)
	}
	if op.Retries < 0 {
		return fmt.Errorf("operation %q has negative retries", op.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops[op.ID] = op
	return nil
}

// ExecuteAll runs every registered operation, launching each ready frontier
// as one concurrent wave and fully settling it before computing the next.
// A critical operation's fatal failure aborts the run; normal and background
// fatal failures are recorded and independent branches continue. The result
// map holds one entry per operation that reached a terminal state.
func (e *Executor) ExecuteAll(ctx context.Context) (map[string]*OperationResult, error) {
	e.mu.Lock()
	if err := e.validateLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	pending := make(map[string]*Operation, len(e.ops))
	for id, op := range e.ops {
		if _, done := e.results[id]; !done {
			pending[id] = op
		}
	}
	e.mu.Unlock()

	for len(pending) > 0 {
		frontier, blocked := e.partitionPending(pending)

		if len(blocked) > 0 {
			// Dependents of a fatally failed operation can never become
			// ready; record them as failed and keep going so independent
			// branches still run.
			for op, failedDep := range blocked {
				result := &OperationResult{
					ID:      op.ID,
					Success: false,
					Err: &ExecutionError{
						ID:  op.ID,
						Err: fmt.Errorf("dependency %q failed", failedDep),
					},
				}
				e.mu.Lock()
				e.results[op.ID] = result
				e.mu.Unlock()
				delete(pending, op.ID)

				if op.Priority == PriorityCritical {
					return e.Results(), fmt.Errorf("critical operation %q failed: %w", op.ID, result.Err)
				}
			}
			continue
		}

		if len(frontier) == 0 {
			return e.Results(), &StructuralError{
				Reason: "no runnable operations remain; dependency cycle or unsatisfied dependency",
			}
		}

		if err := e.runWave(ctx, frontier); err != nil {
			return e.Results(), err
		}
		for _, op := range frontier {
			delete(pending, op.ID)
		}
	}

	return e.Results(), nil
}

// ExecuteInParallel runs the given operations in two waves: all critical
// operations first, awaited to full completion, then normal and background
// together. Dependencies are not consulted; callers use this for sets known
// to be internally independent.
func (e *Executor) ExecuteInParallel(ctx context.Context, ids []string) (map[string]*OperationResult, error) {
	e.mu.Lock()
	var critical, rest []*Operation
	for _, id := range ids {
		op, ok := e.ops[id]
		if !ok {
			e.mu.Unlock()
			return nil, &StructuralError{Reason: fmt.Sprintf("operation %q is not registered", id)}
		}
		if op.Priority == PriorityCritical {
			critical = append(critical, op)
		} else {
			rest = append(rest, op)
		}
	}
	e.mu.Unlock()

	if err := e.runWave(ctx, critical); err != nil {
		return e.resultsFor(ids), err
	}
	if err := e.runWave(ctx, rest); err != nil {
		return e.resultsFor(ids), err
	}
	return e.resultsFor(ids), nil
}

// Results returns a snapshot of all recorded terminal results.
func (e *Executor) Results() map[string]*OperationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := make(map[string]*OperationResult, len(e.results))
	for id, result := range e.results {
		results[id] = result
	}
	return results
}

// Failed returns the recorded fatal failures.
func (e *Executor) Failed() []*OperationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	var failed []*OperationResult
	for _, result := range e.results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// ClearResults drops all recorded results so operations become pending again.
func (e *Executor) ClearResults() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = make(map[string]*OperationResult)
}

func (e *Executor) resultsFor(ids []string) map[string]*OperationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := make(map[string]*OperationResult, len(ids))
	for _, id := range ids {
		if result, ok := e.results[id]; ok {
			results[id] = result
		}
	}
	return results
}

// validateLocked rejects dependency references to unregistered operations
// and dependency cycles before anything runs.
func (e *Executor) validateLocked() error {
	for id, op := range e.ops {
		for _, dep := range op.DependsOn {
			if _, ok := e.ops[dep]; !ok {
				return &StructuralError{
					Reason: fmt.Sprintf("operation %q depends on unregistered operation %q", id, dep),
				}
			}
		}
	}

	// DFS cycle detection over the declared dependency edges.
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(e.ops))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, dep := range e.ops[id].DependsOn {
			switch color[dep] {
			case grey:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range e.ops {
		if color[id] == white {
			if visit(id) {
				return &StructuralError{
					Reason: fmt.Sprintf("dependency cycle involving operation %q", id),
				}
			}
		}
	}
	return nil
}

// partitionPending splits the pending set into the ready frontier and the
// operations blocked by a fatally failed dependency.
func (e *Executor) partitionPending(pending map[string]*Operation) ([]*Operation, map[*Operation]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var frontier []*Operation
	blocked := make(map[*Operation]string)

	for _, op := range pending {
		ready := true
		for _, dep := range op.DependsOn {
			result, terminal := e.results[dep]
			if !terminal {
				ready = false
				continue
			}
			if !result.Success {
				blocked[op] = dep
				ready = false
				break
			}
		}
		if ready {
			frontier = append(frontier, op)
		}
	}
	return frontier, blocked
}

// runWave launches all given operations concurrently and waits for every one
// of them to settle before checking for a critical fatal failure.
func (e *Executor) runWave(ctx context.Context, wave []*Operation) error {
	if len(wave) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, op := range wave {
		wg.Add(1)
		go func(op *Operation) {
			defer wg.Done()
			result := e.runOperation(ctx, op)
			e.mu.Lock()
			e.results[op.ID] = result
			e.mu.Unlock()
		}(op)
	}
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range wave {
		result := e.results[op.ID]
		if op.Priority == PriorityCritical && result != nil && !result.Success {
			return fmt.Errorf("critical operation %q failed: %w", op.ID, result.Err)
		}
	}
	return nil
}

// runOperation drives one operation through its attempt loop to a terminal
// result. The running set guarantees an id is never in flight twice.
func (e *Executor) runOperation(ctx context.Context, op *Operation) *OperationResult {
	e.mu.Lock()
	if e.running[op.ID] {
		e.mu.Unlock()
		return &OperationResult{
			ID:      op.ID,
			Success: false,
			Err:     &StructuralError{Reason: fmt.Sprintf("operation %q is already in flight", op.ID)},
		}
	}
	e.running[op.ID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, op.ID)
		e.mu.Unlock()
	}()

	start := time.Now()
	totalAttempts := op.Retries + 1
	var lastErr error
	attempts := 0
	cancelled := false

	for attempts < totalAttempts && !cancelled {
		attempts++
		value, err := e.attempt(ctx, op)
		if err == nil {
			return &OperationResult{
				ID:       op.ID,
				Success:  true,
				Value:    value,
				Duration: time.Since(start),
				Attempts: attempts,
			}
		}
		lastErr = err
		log.DebugLog.Printf("operation %s attempt %d/%d failed: %v", op.ID, attempts, totalAttempts, err)

		if attempts == totalAttempts {
			break
		}
		delay := e.baseDelay << (attempts - 1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			cancelled = true
		}
	}

	if op.OnError != nil && op.OnError(lastErr) {
		log.WarningLog.Printf("operation %s continuing after failure: %v", op.ID, lastErr)
		return &OperationResult{
			ID:              op.ID,
			Success:         true,
			GracefulFailure: true,
			Duration:        time.Since(start),
			Attempts:        attempts,
		}
	}

	return &OperationResult{
		ID:       op.ID,
		Success:  false,
		Err:      &ExecutionError{ID: op.ID, Attempts: attempts, Err: lastErr},
		Duration: time.Since(start),
		Attempts: attempts,
	}
}

// attempt executes one attempt of the operation body, racing it against the
// configured timeout. On timeout the attempt context is cancelled and the
// wait abandoned; cooperative bodies terminate, others leak until they
// return on their own.
func (e *Executor) attempt(ctx context.Context, op *Operation) (interface{}, error) {
	if op.Timeout <= 0 {
		return op.Run(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, op.Timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op.Run(attemptCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{ID: op.ID, Timeout: op.Timeout}
	}
}
