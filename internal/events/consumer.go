package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/pkg/logger"
)

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consume starts delivering messages from queue to h with at most concurrency
// handlers in flight. It returns once the consumer is registered; the returned
// wait func blocks until the delivery loop has drained after ctx is done.
func Consume(ctx context.Context, ch *amqp.Channel, queue string, concurrency int, h Handler) (wait func(), err error) {
	const op = "events.Consume"

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					settle(d, d.MessageId, h(ctx, d.Body))
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		<-done
		wg.Wait()
	}, nil
}

// settle acks processed and unprocessable messages, and requeues the rest.
func settle(d acknowledger, id string, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error("ack failed", zap.String("message_id", id), zap.Error(ackErr))
		}
	case IsPermanent(err):
		logger.Warn("dropping event", zap.String("message_id", id), zap.Error(err))
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error("ack failed", zap.String("message_id", id), zap.Error(ackErr))
		}
	default:
		logger.Warn("event failed, requeueing", zap.String("message_id", id), zap.Error(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error("nack failed", zap.String("message_id", id), zap.Error(nackErr))
		}
	}
}
