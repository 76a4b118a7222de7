package redisq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bodyField = "body"

var _ port.Queue = (*Queue)(nil)

// Queue implements port.Queue on a Redis Stream with a consumer group.
//
// The mapping onto the visibility-timeout contract:
//   - Receive first reclaims entries whose pending idle time exceeds the
//     visibility timeout (XAUTOCLAIM), which is exactly a message whose
//     previous consumer never acked it, then blocks on XREADGROUP for fresh
//     entries.
//   - The receipt handle is the stream entry ID; Delete acks and removes it.
//   - The platform redelivery counter is the pending entry's delivery count;
//     entries past MaxDeliveries are appended to the dead-letter stream and
//     acked away without ever being handed to the application.
type Queue struct {
	client   *redis.Client
	cfg      QueueConfig
	notifier port.DeadLetterNotifier
	logger   *zap.Logger
}

type QueueConfig struct {
	Stream            string
	Group             string
	Consumer          string
	DLQStream         string
	VisibilityTimeout time.Duration
	MaxDeliveries     int64
}

func NewQueue(client *redis.Client, cfg QueueConfig, notifier port.DeadLetterNotifier, logger *zap.Logger) (*Queue, error) {
	q := &Queue{client: client, cfg: cfg, notifier: notifier, logger: logger}
	if err := q.ensureGroup(context.Background()); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("create consumer group %s on %s: %w", q.cfg.Group, q.cfg.Stream, err)
	}
	return nil
}

func (q *Queue) Send(ctx context.Context, body []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]any{bodyField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append to %s: %w", q.cfg.Stream, err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]port.Message, error) {
	out, err := q.reclaimExpired(ctx, max)
	if err != nil {
		return nil, err
	}
	if len(out) >= max {
		return out, nil
	}

	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    int64(max - len(out)),
		Block:    wait,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, fmt.Errorf("read from %s: %w", q.cfg.Stream, err)
	}

	for _, stream := range res {
		for _, msg := range stream.Messages {
			out = append(out, port.Message{
				ID:            msg.ID,
				ReceiptHandle: msg.ID,
				Body:          bodyOf(msg),
				DeliveryCount: 1,
			})
		}
	}
	return out, nil
}

// reclaimExpired takes over pending entries whose visibility window has
// elapsed, routing exhausted ones to the dead-letter stream.
func (q *Queue) reclaimExpired(ctx context.Context, max int) ([]port.Message, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.VisibilityTimeout,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("autoclaim from %s: %w", q.cfg.Stream, err)
	}

	var out []port.Message
	for _, msg := range claimed {
		count, err := q.deliveryCount(ctx, msg.ID)
		if err != nil {
			return out, err
		}
		if q.cfg.MaxDeliveries > 0 && count > q.cfg.MaxDeliveries {
			q.deadLetter(ctx, msg, fmt.Sprintf("exceeded %d deliveries", q.cfg.MaxDeliveries))
			continue
		}
		metrics.RedeliveriesTotal.Inc()
		out = append(out, port.Message{
			ID:            msg.ID,
			ReceiptHandle: msg.ID,
			Body:          bodyOf(msg),
			DeliveryCount: count,
		})
	}
	return out, nil
}

func (q *Queue) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("pending info for %s: %w", id, err)
	}
	if len(pending) == 0 {
		return 1, nil
	}
	return pending[0].RetryCount, nil
}

func (q *Queue) deadLetter(ctx context.Context, msg redis.XMessage, reason string) {
	body := bodyOf(msg)
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.DLQStream,
		Values: map[string]any{bodyField: string(body), "reason": reason},
	}).Err()
	if err != nil {
		// Leave the entry pending; a later reclaim will try again.
		q.logger.Error("dead-letter append failed", zap.String("id", msg.ID), zap.Error(err))
		return
	}

	if err := q.Delete(ctx, msg.ID); err != nil {
		q.logger.Error("dead-letter ack failed", zap.String("id", msg.ID), zap.Error(err))
	}

	metrics.DeadLetteredTotal.Inc()
	q.logger.Warn("message dead-lettered", zap.String("id", msg.ID), zap.String("reason", reason))

	if q.notifier != nil {
		if err := q.notifier.NotifyDeadLetter(ctx, body, reason); err != nil {
			q.logger.Error("dead-letter notification failed", zap.Error(err))
		}
	}
}

func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, receiptHandle).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", receiptHandle, err)
	}
	if err := q.client.XDel(ctx, q.cfg.Stream, receiptHandle).Err(); err != nil {
		return fmt.Errorf("del %s: %w", receiptHandle, err)
	}
	return nil
}

func bodyOf(msg redis.XMessage) []byte {
	if v, ok := msg.Values[bodyField].(string); ok {
		return []byte(v)
	}
	return nil
}

func isBusyGroup(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr) && len(redisErr.Error()) >= 9 && redisErr.Error()[:9] == "BUSYGROUP"
}
