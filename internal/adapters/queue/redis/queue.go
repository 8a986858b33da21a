package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"treatment-plans/internal/domain/prescriptions"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "treatment-plans:ocr-jobs"

	// BRPOP corta cada pollTimeout para revisar ctx.
	pollTimeout = 5 * time.Second
)

// NewClient conecta a partir de una URL redis://... y verifica con PING.
func NewClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Queue es una lista de Redis: LPUSH para encolar, BRPOP para consumir.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Enqueue(ctx context.Context, job prescriptions.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (prescriptions.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return prescriptions.Job{}, err
		}

		res, err := q.client.BRPop(ctx, pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return prescriptions.Job{}, ctx.Err()
			}
			return prescriptions.Job{}, fmt.Errorf("brpop %s: %w", q.key, err)
		}
		// res = [key, valor]
		if len(res) != 2 {
			continue
		}
		return decodeJob(res[1])
	}
}

func decodeJob(payload string) (prescriptions.Job, error) {
	var job prescriptions.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return prescriptions.Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.UploadID == "" {
		return prescriptions.Job{}, errors.New("decode job: missing upload_id")
	}
	return job, nil
}
