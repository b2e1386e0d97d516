package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/domain/events"
	pkgerrors "graphsync/pkg/errors"
)

// serviceName names EventBridge in EXTERNAL and UNAVAILABLE errors
const serviceName = "eventbridge"

// Source is the EventBridge source of every knowledge event
const Source = "graphsync.knowledge"

// maxEntriesPerCall is the PutEvents batch limit
const maxEntriesPerCall = 10

// PutEventsAPI is the part of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// BreakerConfig holds configuration for the publishing circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Publisher fans knowledge events out through an EventBridge bus
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client PutEventsAPI, eventBusName string, cfg BreakerConfig, logger *zap.Logger) *Publisher {
	p := &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eventbridge:" + eventBusName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return p
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.KnowledgeEvent) error {
	return p.PublishBatch(ctx, []events.KnowledgeEvent{event})
}

// PublishBatch sends events in PutEvents calls of at most ten entries
func (p *Publisher) PublishBatch(ctx context.Context, evts []events.KnowledgeEvent) error {
	for i := 0; i < len(evts); i += maxEntriesPerCall {
		end := i + maxEntriesPerCall
		if end > len(evts) {
			end = len(evts)
		}
		batch := evts[i:end]
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, p.publishBatch(ctx, batch)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.NewUnavailableError(serviceName).WithCause(err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// publishBatch publishes a batch of events (max 10)
func (p *Publisher) publishBatch(ctx context.Context, evts []events.KnowledgeEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(evts))
	for _, event := range evts {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("arn:aws:graphsync::%s", event.GetAggregateID())},
		})
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return pkgerrors.NewExternalError(serviceName, err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(evts) {
				p.logger.Error("Failed to publish event",
					zap.String("event_id", evts[i].ID),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return pkgerrors.NewExternalError(serviceName,
			fmt.Errorf("%d events failed to publish", result.FailedEntryCount))
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
