// FILE: internal/service/consumer_service.go
package service

import (
	"context"

	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains session-update messages from the in-process bus and
// fans them out to connected websocket clients.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	hub        *websocket.Hub
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	hub *websocket.Hub,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		hub:        hub,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.hub.BroadcastSnapshot(msg.Payload)
			msg.Ack()
		}
	}()

	return nil
}
