package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/observability"
)

const gradingEventBufferSize = 16

// GradingEventService streams grading events to connected dashboards and
// relays them across API instances through Redis and NATS.
type GradingEventService interface {
	Publish(ctx context.Context, event dto.GradingEvent)
	Subscribe() (<-chan dto.GradingEvent, func())
	Start(ctx context.Context)
}

type gradingEventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *gradingEventBroker
	nodeID       string
}

type gradingEnvelope struct {
	Source string           `json:"source"`
	Event  dto.GradingEvent `json:"event"`
	SentAt time.Time        `json:"sent_at"`
}

type gradingEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.GradingEvent]struct{}
}

// NewGradingEventService constructs the event hub. Either transport may be nil.
func NewGradingEventService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) GradingEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":graded"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".graded"
	}

	return &gradingEventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "grading_event_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-grader/internal/service/events"),
		broker: &gradingEventBroker{
			subscribers: make(map[chan dto.GradingEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *gradingEventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *gradingEventService) Publish(ctx context.Context, event dto.GradingEvent) {
	spanCtx, span := s.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("event.key", event.Key),
	))
	defer span.End()

	s.broker.broadcast(event)
	if err := s.relay(spanCtx, event); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("key", event.Key).Msg("failed to relay grading event")
	}
}

func (s *gradingEventService) Subscribe() (<-chan dto.GradingEvent, func()) {
	channel := make(chan dto.GradingEvent, gradingEventBufferSize)

	s.broker.subscribe(channel)
	observability.EventSubscribers().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.EventSubscribers().Dec()
		})
	}

	return channel, cleanup
}

func (s *gradingEventService) relay(ctx context.Context, event dto.GradingEvent) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(gradingEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *gradingEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("grading event redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *gradingEventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats grading subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain grading nats subscription")
		}
	}()
}

// handleEnvelope delivers events published by other instances. Events that
// arrive over both transports are delivered twice; clients key on Key.
func (s *gradingEventService) handleEnvelope(payload []byte) {
	var envelope gradingEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid grading event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	event := envelope.Event
	if event.Type == "" {
		event.Type = dto.GradingEventGraded
	}
	s.broker.broadcast(event)
}

func (b *gradingEventBroker) subscribe(ch chan dto.GradingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *gradingEventBroker) unsubscribe(ch chan dto.GradingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *gradingEventBroker) broadcast(event dto.GradingEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
