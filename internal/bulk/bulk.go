// Package bulk runs a list of write operations against a collection,
// either strictly in order or with bounded concurrency, and reduces their
// outcomes into one results.BulkWriteResult.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/docwire/internal/results"
)

// DefaultConcurrency bounds in-flight operations of an unordered bulk write
// when Options.Concurrency is zero.
const DefaultConcurrency = 10

// Options control a bulk write.
type Options struct {
	// Ordered runs operations one at a time in input order and stops at the
	// first failure.
	Ordered bool
	// Concurrency caps in-flight operations of an unordered write.
	Concurrency int
}

// ErrOrderedConcurrency rejects ordered writes with concurrency above one.
var ErrOrderedConcurrency = errors.New("ordered bulk writes cannot run concurrently")

// OperationError ties a failure to the operation that raised it.
type OperationError struct {
	Index int
	Err   error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("operation %d: %v", e.Index, e.Err)
}

// BulkWriteError reports failed operations along with the result of
// everything that did succeed. Writes already applied are never undone.
type BulkWriteError struct {
	Partial results.BulkWriteResult
	Errors  []OperationError
}

func (e *BulkWriteError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, oe := range e.Errors {
		msgs[i] = oe.Error()
	}
	return fmt.Sprintf("bulk write: %d failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the operation errors to errors.Is and errors.As.
func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, oe := range e.Errors {
		errs[i] = oe.Err
	}
	return errs
}

// IsBulkWriteError reports whether err is (or wraps) a BulkWriteError.
func IsBulkWriteError(err error) bool {
	var be *BulkWriteError
	return errors.As(err, &be)
}

// Execute runs ops against target.
//
// Ordered writes run sequentially and stop at the first failure. Unordered
// writes run at most Concurrency operations at a time and attempt every
// operation; cancelling ctx skips operations not yet started, while those
// already running finish. In both modes the result merges the outcome of
// every operation that ran, in index order, so it does not depend on
// completion order.
func Execute(ctx context.Context, target Target, ops []Operation, opts Options) (results.BulkWriteResult, error) {
	if opts.Ordered {
		if opts.Concurrency > 1 {
			return results.Zero(), ErrOrderedConcurrency
		}
		return executeOrdered(ctx, target, ops)
	}
	return executeUnordered(ctx, target, ops, opts.Concurrency)
}

func executeOrdered(ctx context.Context, target Target, ops []Operation) (results.BulkWriteResult, error) {
	acc := results.Zero()
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return acc, &BulkWriteError{Partial: acc, Errors: []OperationError{{Index: i, Err: err}}}
		}
		res, err := op.Execute(ctx, target, i)
		acc = acc.Merge(res)
		if err != nil {
			slog.Warn("ordered bulk write stopped",
				"index", i,
				"completed", i,
				"remaining", len(ops)-i-1,
				"error", err)
			return acc, &BulkWriteError{Partial: acc, Errors: []OperationError{{Index: i, Err: err}}}
		}
	}
	slog.Debug("ordered bulk write complete", "operations", len(ops))
	return acc, nil
}

func executeUnordered(ctx context.Context, target Target, ops []Operation, concurrency int) (results.BulkWriteResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	outcomes := make([]results.BulkWriteResult, len(ops))
	errs := make([]error, len(ops))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, op := range ops {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i], errs[i] = results.Zero(), err
				return nil
			}
			outcomes[i], errs[i] = op.Execute(ctx, target, i)
			return nil
		})
	}
	// Workers never return an error; failures are kept per slot.
	_ = g.Wait()

	acc := results.Reduce(outcomes)
	var failed []OperationError
	for i, err := range errs {
		if err != nil {
			failed = append(failed, OperationError{Index: i, Err: err})
		}
	}
	slog.Debug("unordered bulk write complete",
		"operations", len(ops),
		"failed", len(failed),
		"concurrency", concurrency)
	if len(failed) > 0 {
		return acc, &BulkWriteError{Partial: acc, Errors: failed}
	}
	return acc, nil
}
