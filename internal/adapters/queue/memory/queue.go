package memory

import (
	"context"
	"errors"

	"treatment-plans/internal/domain/prescriptions"
)

var ErrFull = errors.New("queue is full")

// Queue es una cola en proceso; los trabajos se pierden al reiniciar.
type Queue struct {
	jobs chan prescriptions.Job
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{jobs: make(chan prescriptions.Job, size)}
}

func (q *Queue) Enqueue(ctx context.Context, job prescriptions.Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

func (q *Queue) Dequeue(ctx context.Context) (prescriptions.Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return prescriptions.Job{}, ctx.Err()
	}
}

func (q *Queue) Len() int { return len(q.jobs) }
