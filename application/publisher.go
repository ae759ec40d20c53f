package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

const (
	MinPort = 1
	MaxPort = 65535
)

var (
	ErrEmptyHost   = fmt.Errorf("broker host is empty")
	ErrInvalidPort = fmt.Errorf("invalid port")
	ErrEmptyTopic  = fmt.Errorf("topic is empty")
)

type MQTTStatus struct {
	MessageCount      uint64    `json:"message_count"`
	LastTimePublished time.Time `json:"last_time_published"`
}

// ConnectionParams identifies the broker a single publish talks to.
type ConnectionParams struct {
	Host     string
	Port     int
	ClientID string
}

func (c ConnectionParams) Validate() error {
	if c.Host == "" {
		return ErrEmptyHost
	}
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("%w %d: must be in [%d, %d]", ErrInvalidPort, c.Port, MinPort, MaxPort)
	}
	return nil
}

type PublishRequest struct {
	Topic     string
	Payload   Payload
	QoS       byte
	KeepAlive time.Duration
}

// Message is a PublishRequest after serialization, as handed to a transport.
type Message struct {
	Topic     string
	QoS       byte
	KeepAlive time.Duration
	Payload   []byte
}

// Publisher opens one connection per call, publishes msg and closes the
// connection again before returning.
type Publisher interface {
	Publish(ctx context.Context, conn ConnectionParams, msg Message) error
	Status() MQTTStatus
}

type PublishResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// PublishFailure is the only error kind surfaced to the operator.
type PublishFailure struct {
	Topic string
	Err   error
}

func (f *PublishFailure) Error() string {
	return fmt.Sprintf("Error publishing on '%s': %v", f.Topic, f.Err)
}

func (f *PublishFailure) Unwrap() error {
	return f.Err
}

// Publish validates the target, serializes the payload and hands it to pub.
// Every fault, including a panic inside the transport, comes back as a
// failed PublishResult.
func Publish(ctx context.Context, pub Publisher, conn ConnectionParams, req PublishRequest) PublishResult {
	log := zerolog.Ctx(ctx).With().
		Str("publish_id", uuid.NewString()).
		Str("topic", req.Topic).
		Logger()
	ctx = log.WithContext(ctx)

	text, err := publish(ctx, pub, conn, req)
	if err != nil {
		failure := &PublishFailure{Topic: req.Topic, Err: err}
		log.Warn().Err(err).Str("host", conn.Host).Int("port", conn.Port).Msg("publish failed")
		return PublishResult{OK: false, Detail: failure.Error()}
	}

	log.Info().Str("payload", text).Msg("published")
	return PublishResult{OK: true, Detail: fmt.Sprintf("Published on '%s': %s", req.Topic, text)}
}

func publish(ctx context.Context, pub Publisher, conn ConnectionParams, req PublishRequest) (string, error) {
	if pub == nil {
		return "", errors.New("publisher is nil")
	}
	if err := conn.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Topic) == "" {
		return "", ErrEmptyTopic
	}

	data, err := req.Payload.Marshal()
	if err != nil {
		return "", err
	}

	var catcher panics.Catcher
	catcher.Try(func() {
		err = pub.Publish(ctx, conn, Message{
			Topic:     req.Topic,
			QoS:       req.QoS,
			KeepAlive: req.KeepAlive,
			Payload:   data,
		})
	})
	if r := catcher.Recovered(); r != nil {
		return "", fmt.Errorf("publisher panicked: %v", r.Value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
