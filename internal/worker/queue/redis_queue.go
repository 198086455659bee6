package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// WakeQueue is a redis list used as a wake-up signal for job submission.
// It only paces the poll loop: the Postgres conditional write remains the
// single authority on who owns a job, so a lost or duplicated signal is
// harmless.
type WakeQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewWakeQueue(rdb *redis.Client, queueName string) *WakeQueue {
	return &WakeQueue{rdb: rdb, queueName: queueName}
}

// Wait blocks until a wake signal arrives or timeout elapses. A timeout is
// not an error: the caller attempts a claim either way, which covers
// signals lost while no worker was listening.
func (q *WakeQueue) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return len(res) == 2, nil
}
