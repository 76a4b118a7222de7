package redisq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/redis/go-redis/v9"
)

var _ port.StatusPublisher = (*StatusPublisher)(nil)

// StatusPublisher appends job status transitions to a capped stream that
// interested frontends can tail.
type StatusPublisher struct {
	client *redis.Client
	stream string
}

func NewStatusPublisher(client *redis.Client, stream string) *StatusPublisher {
	return &StatusPublisher{client: client, stream: stream}
}

func (p *StatusPublisher) PublishStatus(ctx context.Context, msg entity.JobStatusMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{bodyField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}
