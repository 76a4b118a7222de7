package redisq

import (
	"context"
	"sync"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/metrics"
	"go.uber.org/zap"
)

// ExecuteFunc processes one job to a durably recorded terminal state.
// A nil return means the message may be acked.
type ExecuteFunc func(ctx context.Context, owner, jobID, inputKey string) error

// Consumer drives the receive loop and a bounded pool of workers.
// Messages are acked only after the handler reports a terminal state;
// handler errors leave the message pending so the visibility timeout
// redelivers it to another worker.
type Consumer struct {
	queue   port.Queue
	execute ExecuteFunc
	cfg     ConsumerConfig
	logger  *zap.Logger
}

type ConsumerConfig struct {
	WorkerCount  int
	ReceiveBatch int
	ReceiveWait  time.Duration
}

func NewConsumer(queue port.Queue, execute ExecuteFunc, cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.ReceiveBatch <= 0 {
		cfg.ReceiveBatch = 1
	}
	return &Consumer{queue: queue, execute: execute, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled. On cancellation it stops receiving,
// lets in-flight executions run to completion and ack, then returns;
// anything not yet handed to a worker is redelivered after the visibility
// timeout.
func (c *Consumer) Run(ctx context.Context) error {
	msgs := make(chan port.Message)

	// Only the receive loop observes the run context. Workers get a
	// context that survives cancellation so an execution already past its
	// commit point can finish and ack instead of being aborted mid-pipeline;
	// its outer bound is the per-run deadline or the visibility timeout.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				c.process(workCtx, msg)
			}
		}()
	}

	c.logger.Info("consumer started",
		zap.Int("workers", c.cfg.WorkerCount),
		zap.Int("batch", c.cfg.ReceiveBatch))

receive:
	for {
		if ctx.Err() != nil {
			break
		}
		batch, err := c.queue.Receive(ctx, c.cfg.ReceiveBatch, c.cfg.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("receive failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				break receive
			}
			continue
		}
		for _, msg := range batch {
			select {
			case msgs <- msg:
			case <-ctx.Done():
				break receive
			}
		}
	}

	close(msgs)
	wg.Wait()
	c.logger.Info("consumer stopped")
	return ctx.Err()
}

func (c *Consumer) process(ctx context.Context, msg port.Message) {
	job, err := entity.ParseJobMessage(msg.Body)
	if err != nil {
		metrics.MalformedMessagesTotal.Inc()
		c.logger.Warn("malformed message dropped",
			zap.String("id", msg.ID),
			zap.Error(err))
		c.ack(ctx, msg)
		return
	}

	log := c.logger.With(
		zap.String("owner", job.Owner),
		zap.String("jobId", job.JobID),
		zap.Int64("delivery", msg.DeliveryCount))

	if err := c.execute(ctx, job.Owner, job.JobID, job.InputKey); err != nil {
		log.Error("job execution failed, leaving message for redelivery", zap.Error(err))
		return
	}

	c.ack(ctx, msg)
	log.Info("job message acked")
}

func (c *Consumer) ack(ctx context.Context, msg port.Message) {
	// Use a fresh context so shutdown cancellation cannot lose an ack
	// for work that already reached a terminal state.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.queue.Delete(ackCtx, msg.ReceiptHandle); err != nil {
		c.logger.Error("ack failed", zap.String("id", msg.ID), zap.Error(err))
	}
}
