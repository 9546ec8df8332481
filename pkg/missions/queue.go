// Package missions provides the Redis-backed mission queue: the API enqueues
// missions, agent workers pop and execute them.
package missions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/atypis/runops/pkg/agent"
	"github.com/atypis/runops/pkg/log"
)

const (
	// DefaultQueue is the Redis list missions travel on.
	DefaultQueue = "runops:missions"

	popTimeout     = 1 * time.Second
	connectTimeout = 5 * time.Second
	retryBackoff   = 1 * time.Second
)

// Callback executes one dequeued mission.
type Callback func(ctx context.Context, mission agent.Mission) error

// Queue is a Redis list carrying serialized missions.
type Queue struct {
	client redis.UniversalClient
	queue  string
	logger *slog.Logger

	callback Callback
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(ctx context.Context, addr, password string, db int, queue string) (*Queue, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{
		client: client,
		queue:  queue,
		stopCh: make(chan struct{}),
		logger: log.WithModule("missions").With("queue", queue),
	}, nil
}

// Enqueue pushes a mission onto the queue.
func (q *Queue) Enqueue(ctx context.Context, mission agent.Mission) error {
	payload, err := json.Marshal(mission)
	if err != nil {
		return fmt.Errorf("failed to serialize mission %s: %w", mission.ID, err)
	}

	if err := q.client.RPush(ctx, q.queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue mission %s: %w", mission.ID, err)
	}

	q.logger.Info("mission enqueued", "mission_id", mission.ID, "workflow_id", mission.WorkflowID)

	return nil
}

// Start launches the consumer goroutine. Missions are executed one at a
// time in dequeue order.
func (q *Queue) Start(ctx context.Context, callback Callback) {
	q.callback = callback

	q.wg.Add(1)

	go q.consume(ctx)
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()

	q.logger.Info("mission consumer started")

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("mission consumer stopped")

			return
		case <-ctx.Done():
			q.logger.Info("context cancelled, stopping mission consumer")

			return
		default:
			if err := q.processMessage(ctx); err != nil {
				q.logger.Error("error processing mission", "error", err)
				time.Sleep(retryBackoff)
			}
		}
	}
}

func (q *Queue) processMessage(ctx context.Context) error {
	result, err := q.client.BLPop(ctx, popTimeout, q.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop mission from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var mission agent.Mission
	if err := json.Unmarshal([]byte(result[1]), &mission); err != nil {
		return fmt.Errorf("discarding malformed mission payload: %w", err)
	}

	q.logger.Info("mission dequeued", "mission_id", mission.ID, "workflow_id", mission.WorkflowID)

	if err := q.callback(ctx, mission); err != nil {
		q.logger.Error("mission execution failed", "mission_id", mission.ID, "error", err)
	}

	return nil
}

// Stop shuts the consumer down and closes the Redis connection.
func (q *Queue) Stop(ctx context.Context) error {
	close(q.stopCh)
	q.wg.Wait()

	if err := q.client.Close(); err != nil {
		q.logger.ErrorContext(ctx, "error closing Redis client", "error", err)
	}

	return nil
}
