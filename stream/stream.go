// Package stream chains generic channel stages that stop with their context.
package stream

import (
	"bufio"
	"context"
	"io"
)

// stage runs fn on every element of in. fn hands results to emit,
// which reports false once ctx is done. The output closes when in is drained.
func stage[I any, O any](ctx context.Context, in <-chan I, fn func(v I, emit func(O) bool) bool) <-chan O {
	out := make(chan O)
	emit := func(v O) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- v:
			return true
		}
	}
	go func() {
		defer close(out)
		for v := range in {
			if !fn(v, emit) {
				// Drain so upstream stages can exit.
				for range in {
				}
				return
			}
		}
	}()
	return out
}

// Filter passes on the elements satisfying keep.
func Filter[T any](ctx context.Context, keep func(T) bool, in <-chan T) <-chan T {
	return stage(ctx, in, func(v T, emit func(T) bool) bool {
		if !keep(v) {
			return true
		}
		return emit(v)
	})
}

// Transform maps every element with fn.
func Transform[I any, O any](ctx context.Context, fn func(I) O, in <-chan I) <-chan O {
	return stage(ctx, in, func(v I, emit func(O) bool) bool {
		return emit(fn(v))
	})
}

// Collect gathers in until it closes. The elements gathered before
// ctx was done are returned with ctx's error.
func Collect[T any](ctx context.Context, in <-chan T) ([]T, error) {
	var out []T
	for v := range in {
		if ctx.Err() != nil {
			continue
		}
		out = append(out, v)
	}
	return out, ctx.Err()
}

// MaxLineSize bounds a single line read by Lines.
var MaxLineSize = 4 * 1024 * 1024

// Lines streams the non-empty lines of in, without their line endings.
// The error channel receives at most one error, a read or context error,
// and is closed after the lines channel.
func Lines(ctx context.Context, in io.Reader) (<-chan []byte, <-chan error) {
	out := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, min(64*1024, MaxLineSize)), MaxLineSize)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- line:
			}
		}
		errs <- scanner.Err()
	}()
	return out, errs
}
