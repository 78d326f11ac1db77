// Package parallel map-reduce helpers over index ranges on a bounded worker pool.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk минимальный размер порции, мельче не дробим
const minChunk = 64

// Workers нормализует число воркеров: 0 или меньше означает runtime.NumCPU()
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// For вызывает fn(i) для i в [0, n) на workers воркерах. Каждый индекс
// обрабатывается ровно один раз; fn пишет только в свою позицию результата.
// Контекст проверяется перед каждой порцией.
func For(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	workers = Workers(workers)
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	if workers == 1 || n <= chunk {
		for i := 0; i < n; i++ {
			if i%minChunk == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// Map применяет fn к каждому индексу и собирает результаты по позициям
func Map[T any](ctx context.Context, n, workers int, fn func(i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	err := For(ctx, n, workers, func(i int) error {
		v, err := fn(i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
