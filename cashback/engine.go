/*
engine.go - Parallel driver across customers

PURPOSE:
  Runs the Simulator once per customer on a bounded worker pool and
  hands the results to the reducers in aggregate.go.

CONCURRENCY MODEL:
  - One unit of work = one customer (rows merged by GroupCustomers)
  - Workers share nothing but the read-only Program
  - Each result is written to its customer's input index, so output order
    never depends on completion order
  - ctx is checked between customers; one customer is never interrupted

ERRORS:
  The only error the engine returns is a cancelled or expired context.
  Bad rows, bad fields, and bad dates are absorbed by the parser.

USAGE:
  engine := cashback.NewEngine(program, cashback.WithWorkers(8))
  report, err := engine.FullHistory(ctx, rows)
  months, err := engine.MonthScoped(ctx, rows, cashback.MonthRequest{
      Months: []string{"2024-01", "2024-02"}, ByBracket: true,
  })
*/
package cashback

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// CustomerSource is anything that can hand over the input table.
type CustomerSource interface {
	ListCustomers(ctx context.Context) ([]CustomerRow, error)
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Program Program
	Workers int
	Logger  *slog.Logger
}

type Option func(*Engine)

// WithWorkers bounds the number of customers simulated at once.
// Non-positive values fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.Workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

func NewEngine(program Program, opts ...Option) *Engine {
	e := &Engine{Program: program}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Simulate runs every customer in rows and returns one result per distinct
// customer id, in first-seen order.
func (e *Engine) Simulate(ctx context.Context, rows []CustomerRow) ([]CustomerResult, error) {
	start := time.Now()
	customers := GroupCustomers(rows)
	results := make([]CustomerResult, len(customers))
	sim := Simulator{Program: e.Program}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, c := range customers {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = sim.Run(c.ID, c.Orders())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulate customers: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulate customers: %w", err)
	}

	e.logger().Debug("simulation finished",
		"customers", len(customers),
		"workers", e.workers(),
		"duration", time.Since(start),
	)
	return results, nil
}

// FullHistory returns the lifetime table and the full trace.
func (e *Engine) FullHistory(ctx context.Context, rows []CustomerRow) (LifetimeReport, error) {
	results, err := e.Simulate(ctx, rows)
	if err != nil {
		return LifetimeReport{}, err
	}
	return BuildLifetimeReport(results), nil
}

// MonthScoped simulates every customer once and summarizes the retained
// traces for each requested month.
func (e *Engine) MonthScoped(ctx context.Context, rows []CustomerRow, req MonthRequest) ([]MonthSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	results, err := e.Simulate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return SummarizeMonths(results, e.Program.Brackets, req), nil
}

// FromSource loads the input table from src and runs fn over it.
func FromSource[T any](ctx context.Context, src CustomerSource, fn func(context.Context, []CustomerRow) (T, error)) (T, error) {
	rows, err := src.ListCustomers(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("list customers: %w", err)
	}
	return fn(ctx, rows)
}
