// Package push hands Face ID wake-up requests to the notification pipeline.
// Delivery to the phone is the pipeline's job; this package only reports
// whether each request was accepted.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/segmentio/kafka-go"
)

// MessageType identifies face auth requests on the push topic.
const MessageType = "face_auth_request"

var errEmptyToken = errors.New("empty push token")

// FaceAuthMessage is the record consumed by the notification worker, one per
// device token.
type FaceAuthMessage struct {
	Type       string         `json:"type"`
	PushToken  string         `json:"pushToken"`
	RequestID  string         `json:"requestId"`
	UserID     string         `json:"userId"`
	ExpiresAt  time.Time      `json:"expiresAt"`
	DeviceInfo map[string]any `json:"deviceInfo,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
}

func newMessage(token string, req domain.FacePushRequest) FaceAuthMessage {
	return FaceAuthMessage{
		Type:       MessageType,
		PushToken:  token,
		RequestID:  req.RequestID,
		UserID:     req.UserID,
		ExpiresAt:  req.ExpiresAt,
		DeviceInfo: req.DeviceInfo,
		Title:      "Face ID Login Request",
		Body:       "Tap to verify your identity",
	}
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer for topic. Messages are keyed
// by user id so one user's requests stay on one partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// KafkaGateway publishes one message per device token.
type KafkaGateway struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewKafkaGateway(writer MessageWriter, logger *slog.Logger) *KafkaGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaGateway{writer: writer, logger: logger}
}

// SendFaceAuthRequest reports a per-token outcome. It only fails when no
// message at all could be written.
func (g *KafkaGateway) SendFaceAuthRequest(
	ctx context.Context,
	pushTokens []string,
	req domain.FacePushRequest,
) ([]domain.PushOutcome, error) {
	outcomes := make([]domain.PushOutcome, len(pushTokens))
	msgs := make([]kafka.Message, 0, len(pushTokens))
	index := make([]int, 0, len(pushTokens)) // msgs[i] belongs to outcomes[index[i]]

	for i, token := range pushTokens {
		outcomes[i].PushToken = token
		if strings.TrimSpace(token) == "" {
			outcomes[i].Error = errEmptyToken.Error()
			continue
		}

		value, err := json.Marshal(newMessage(token, req))
		if err != nil {
			outcomes[i].Error = err.Error()
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(req.UserID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(MessageType)},
			},
		})
		index = append(index, i)
	}

	if len(msgs) == 0 {
		return outcomes, nil
	}

	err := g.writer.WriteMessages(ctx, msgs...)
	var writeErrs kafka.WriteErrors
	switch {
	case err == nil:
		for _, i := range index {
			outcomes[i].Delivered = true
		}
	case errors.As(err, &writeErrs) && len(writeErrs) == len(msgs):
		for n, i := range index {
			if writeErrs[n] != nil {
				outcomes[i].Error = writeErrs[n].Error()
				continue
			}
			outcomes[i].Delivered = true
		}
		if writeErrs.Count() == len(msgs) {
			return outcomes, fmt.Errorf("push: write messages: %w", err)
		}
	default:
		return outcomes, fmt.Errorf("push: write messages: %w", err)
	}

	for _, o := range outcomes {
		if !o.Delivered {
			g.logger.Warn("push request rejected",
				"request_id", req.RequestID,
				"token", cryptox.FingerprintToken(o.PushToken),
				"error", o.Error)
		}
	}
	return outcomes, nil
}

func (g *KafkaGateway) Close() error {
	return g.writer.Close()
}

// LogGateway accepts every request and only logs it. Used when no push
// pipeline is configured.
type LogGateway struct {
	Logger *slog.Logger
}

func (g LogGateway) SendFaceAuthRequest(
	_ context.Context,
	pushTokens []string,
	req domain.FacePushRequest,
) ([]domain.PushOutcome, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	outcomes := make([]domain.PushOutcome, 0, len(pushTokens))
	for _, token := range pushTokens {
		logger.Info("face auth push (log only)",
			"request_id", req.RequestID,
			"user_id", req.UserID,
			"token", cryptox.FingerprintToken(token))
		outcomes = append(outcomes, domain.PushOutcome{PushToken: token, Delivered: true})
	}
	return outcomes, nil
}

func (LogGateway) Close() error { return nil }
