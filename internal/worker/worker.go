package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-template/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StreamClient is the subset of the Redis client used by the worker
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Worker represents the template worker
type Worker struct {
	id            string
	concurrency   int
	blockTime     time.Duration
	client        StreamClient
	processor     *Processor
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	group         *errgroup.Group
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(cfg *config.Config, client StreamClient, processor *Processor, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		blockTime:     cfg.BlockTime,
		client:        client,
		processor:     processor,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start creates the consumer group and starts the consumers
func (w *Worker) Start() error {
	w.logger.Info("starting template worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
		zap.Int("concurrency", w.concurrency),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	group, ctx := errgroup.WithContext(w.ctx)
	for i := 0; i < w.concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", w.id, i)
		group.Go(func() error {
			w.processWork(ctx, consumer)
			return nil
		})
	}
	w.group = group

	w.logger.Info("template worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop cancels the consumers and waits for in-flight messages
func (w *Worker) Stop() error {
	w.logger.Info("stopping template worker", zap.String("worker_id", w.id))

	w.cancel()
	if w.group != nil {
		if err := w.group.Wait(); err != nil {
			return err
		}
	}

	w.logger.Info("template worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.client.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads from the stream until ctx is cancelled
func (w *Worker) processWork(ctx context.Context, consumer string) {
	w.logger.Debug("starting work processing loop", zap.String("consumer", consumer))

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("work processing loop stopped", zap.String("consumer", consumer))
			return
		default:
		}

		streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: consumer,
			Streams:  []string{w.streamKey, ">"},
			Count:    1,
			Block:    w.blockTime,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to read from stream",
				zap.String("consumer", consumer),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(ctx, message)
			}
		}
	}
}

// handleMessage renders one request and acknowledges it whatever the outcome
func (w *Worker) handleMessage(ctx context.Context, message redis.XMessage) {
	messageID := message.ID
	defer w.acknowledgeMessage(ctx, messageID)

	req, err := ParseRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse render request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(ctx, nil, err)
		return
	}

	w.logger.Info("processing render request",
		zap.String("message_id", messageID),
		zap.String("request_id", req.ID),
		zap.String("template", req.Template),
	)

	result, err := w.processor.Process(req)
	if err != nil {
		w.logger.Error("failed to render template",
			zap.String("message_id", messageID),
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		w.publishError(ctx, req, err)
		return
	}

	if err := w.publish(ctx, w.resultStream, result); err != nil {
		w.logger.Error("failed to publish render result",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("published render result",
		zap.String("request_id", req.ID),
		zap.Int64("duration_ms", result.DurationMs),
	)
}

// publishError publishes a failure to the error stream
func (w *Worker) publishError(ctx context.Context, req *RenderRequest, cause error) {
	failure := w.processor.Failure(req, cause)
	if err := w.publish(ctx, w.resultStream+".errors", failure); err != nil {
		w.logger.Error("failed to publish error", zap.Error(err))
	}
}

func (w *Worker) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to stream %s: %w", stream, err)
	}
	return nil
}

// acknowledgeMessage acknowledges a message in the stream
func (w *Worker) acknowledgeMessage(ctx context.Context, messageID string) {
	// cancelled ctx must not leave the message pending
	ctx = context.WithoutCancel(ctx)
	if err := w.client.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err(); err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

var _ StreamClient = (*redis.Client)(nil)
