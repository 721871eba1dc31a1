// Package concurrency coordinates independent, potentially slow external
// operations with dependency ordering, priority classes, bounded
// concurrency, retries, timeouts, and graceful degradation.
//
// # Core Components
//
// Executor - dependency-ordered operation sets run as concurrent waves
//
//	ex := NewExecutor()
//	ex.Register(&Operation{ID: "validate", Priority: PriorityCritical, Run: ...})
//	ex.Register(&Operation{ID: "clone", DependsOn: []string{"validate"}, Run: ...})
//	results, err := ex.ExecuteAll(ctx)
//
// BatchExecutor - flat operation lists under a concurrency cap
//
//	be := NewBatchExecutor(4)
//	result, err := be.ExecuteParallel(ctx, ops)
//
// Operation bodies are opaque: the package only requires that they return a
// value or an error, and that they honor context cancellation if they want
// timeouts to terminate them. Results are plain data records for logging and
// telemetry collaborators.
//
// The two executors differ deliberately in failure policy: the Executor
// records non-critical failures and keeps independent branches running,
// while BatchExecutor's parallel mode lets every operation finish and then
// fails together with one aggregated error.
package concurrency
