package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one file's unit of work within a stage batch.
type Task struct {
	File string
	Size int64
	Run  func(ctx context.Context) StageResult
}

// RunAll executes tasks on a bounded pool and returns one result per task in
// completion order. A panic or failure inside one task yields a FAILED
// result for that task only; siblings and the pool keep running. onDone, if
// non-nil, is called after each task completes.
func RunAll(ctx context.Context, tasks []Task, limit int, onDone func(StageResult)) Report {
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	results := make(Report, 0, len(tasks))

	var eg errgroup.Group
	eg.SetLimit(limit)
	for _, task := range tasks {
		eg.Go(func() error {
			res := runIsolated(ctx, task)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			if onDone != nil {
				onDone(res)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// RunSplit routes tasks at or under largeBytes through the pool and runs the
// rest strictly sequentially afterwards, bounding peak memory for oversized
// inputs. The sequential batch never starts before the pooled batch
// finishes.
func RunSplit(ctx context.Context, tasks []Task, limit int, largeBytes int64, onDone func(StageResult)) Report {
	var pooled, large []Task
	for _, t := range tasks {
		if t.Size > largeBytes {
			large = append(large, t)
		} else {
			pooled = append(pooled, t)
		}
	}

	results := RunAll(ctx, pooled, limit, onDone)
	for _, t := range large {
		res := runIsolated(ctx, t)
		results = append(results, res)
		if onDone != nil {
			onDone(res)
		}
	}
	return results
}

func runIsolated(ctx context.Context, task Task) (res StageResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(task.File, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return Failed(task.File, err)
	}
	return task.Run(ctx)
}
