package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/phonecall-sagas/internal/orchestrator"
	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
	"github.com/jcmexdev/phonecall-sagas/internal/statemachine"
)

// Subscriber consumes trigger messages from Redis pub/sub and fires them
// through the orchestrator, sharing its per-identifier locking with the HTTP
// surface.
type Subscriber struct {
	client *redis.Client
	svc    *orchestrator.Service
}

func NewSubscriber(client *redis.Client, svc *orchestrator.Service) *Subscriber {
	return &Subscriber{client: client, svc: svc}
}

// channels lists every subscription: the start channel, the terminate alias,
// and one channel per remaining trigger wire name.
func channels() []string {
	names := []string{
		StartChannel,
		TerminateChannel,
	}
	for _, t := range []phonecall.Trigger{
		phonecall.TriggerConnected,
		phonecall.TriggerLeftMessage,
		phonecall.TriggerPlacedOnHold,
		phonecall.TriggerTakenOffHold,
		phonecall.TriggerPhoneHurled,
		phonecall.TriggerMute,
		phonecall.TriggerUnmute,
		phonecall.TriggerSetVolume,
	} {
		names = append(names, Channel(string(t)))
	}
	return names
}

// Run subscribes and processes messages until ctx is cancelled. Message
// handling errors are logged and the loop keeps going: a rejected duplicate
// must not take down the subscriber.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, channels()...)
	defer pubsub.Close()

	// Block until the subscription is confirmed so callers can publish
	// immediately after Run is started.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.handle(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				slog.ErrorContext(ctx, "event trigger failed",
					"channel", msg.Channel,
					"error", err,
				)
			}
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, channel string, payload []byte) error {
	if channel == StartChannel {
		return s.handleStart(ctx, payload)
	}

	var msg TriggerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", channel, err)
	}
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		return fmt.Errorf("events: %s carries invalid saga id %q: %w", channel, msg.ID, err)
	}

	name := triggerName(channel)
	if channel == TerminateChannel {
		name = string(phonecall.TriggerPhoneHurled)
	}
	trigger, err := phonecall.ParseTrigger(name)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	args, err := triggerArgs(trigger, msg.Parameter)
	if err != nil {
		return fmt.Errorf("events: %s: %w", channel, err)
	}

	state, err := s.svc.FireTrigger(ctx, id, trigger, args...)

	var unpermitted *statemachine.UnpermittedTriggerError
	if errors.As(err, &unpermitted) {
		// At-least-once delivery: a redelivered or stale trigger lands
		// here. The table already rejected it; log and ack.
		slog.WarnContext(ctx, "event trigger rejected",
			"saga_id", id,
			"trigger", trigger,
			"state", state,
		)
		return nil
	}
	return err
}

func (s *Subscriber) handleStart(ctx context.Context, payload []byte) error {
	var msg StartCallMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("events: decode start payload: %w", err)
	}
	if msg.CallerNumber == "" || msg.ReceiverNumber == "" {
		return errors.New("events: start message requires caller_number and receiver_number")
	}

	saga, err := s.svc.StartCall(ctx, phonecall.StartCallParams{
		CallerName:     msg.CallerName,
		CallerNumber:   msg.CallerNumber,
		ReceiverName:   msg.ReceiverName,
		ReceiverNumber: msg.ReceiverNumber,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "saga started from event",
		"saga_id", saga.ID(),
		"state", saga.State(),
	)
	return nil
}

// triggerArgs mirrors the HTTP surface's parameter conversion: JSON numbers
// arrive as float64 and setVolume insists on an integral value.
func triggerArgs(trigger phonecall.Trigger, param any) ([]any, error) {
	switch trigger {
	case phonecall.TriggerDial:
		s, ok := param.(string)
		if !ok || s == "" {
			return nil, errors.New("dial requires a string parameter")
		}
		return []any{s}, nil
	case phonecall.TriggerSetVolume:
		f, ok := param.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, errors.New("setVolume requires an integer parameter")
		}
		return []any{int(f)}, nil
	default:
		if param != nil {
			return nil, errors.New("trigger takes no parameter")
		}
		return nil, nil
	}
}
