package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Message struct {
	Channel   model.Channel
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers one message. A nil error means the provider accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TransientError marks a failure worth retrying (timeouts, 5xx, broker hiccups).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

var (
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrEmptyRecipient     = errors.New("empty recipient")
)

// Router dispatches by channel.
type Router struct {
	senders map[model.Channel]Sender
}

func NewRouter(senders map[model.Channel]Sender) *Router {
	return &Router{senders: senders}
}

func (r *Router) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrEmptyRecipient
	}
	s, ok := r.senders[msg.Channel]
	if !ok || s == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, msg.Channel)
	}
	return s.Send(ctx, msg)
}

type NoopSender struct {
	logger *slog.Logger
}

func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) Send(_ context.Context, msg Message) error {
	if s.logger != nil {
		s.logger.Info("notification skipped (noop sender)", "channel", msg.Channel, "recipient", msg.Recipient)
	}
	return nil
}
