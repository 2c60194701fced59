package inquiry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/GTLTrack/internal/broker/messages"
)

// BuildMessage renders the WhatsApp text. Material and weight are upper-cased.
func BuildMessage(r Request) string {
	return fmt.Sprintf("*GTL INQUIRY*\n*Mat:* %s\n*Weight:* %s\n*Load:* %s\n*Vehicle:* %s\n*From:* %s\n*To:* %s",
		strings.ToUpper(r.Material), strings.ToUpper(r.Weight), r.LoadType, r.Vehicle, r.FromAddress, r.ToAddress)
}

// Link is the wa.me deep link with msg pre-filled. Spaces go out as %20: some WhatsApp
// clients show a literal '+'.
func Link(number, msg string) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"))
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Result struct {
	Message           string `json:"message"`
	Link              string `json:"link"`
	ResetAfterSeconds int    `json:"resetAfterSeconds"`
}

type Service struct {
	number     string
	resetAfter time.Duration
	producer   Producer
	topic      string
	now        func() time.Time
}

func New(number string, resetAfter time.Duration) *Service {
	return &Service{number: number, resetAfter: resetAfter, now: time.Now}
}

// WithLeads publishes every accepted inquiry to topic.
func (s *Service) WithLeads(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

// Submit validates r and returns the outbound message. A *ValidationError is the only
// error it returns; lead publishing is best effort.
func (s *Service) Submit(ctx context.Context, r Request) (Result, error) {
	if err := Validate(r); err != nil {
		return Result{}, err
	}
	msg := BuildMessage(r)
	s.publish(ctx, r)
	return Result{
		Message:           msg,
		Link:              Link(s.number, msg),
		ResetAfterSeconds: int(s.resetAfter / time.Second),
	}, nil
}

func (s *Service) publish(ctx context.Context, r Request) {
	if s.producer == nil || s.topic == "" {
		return
	}
	b, err := json.Marshal(messages.InquirySubmitted{
		Material:    r.Material,
		Weight:      r.Weight,
		LoadType:    r.LoadType,
		Vehicle:     r.Vehicle,
		FromCity:    r.FromCity,
		FromAddress: r.FromAddress,
		ToCity:      r.ToCity,
		ToAddress:   r.ToAddress,
		SubmittedAt: s.now().UTC(),
	})
	if err != nil {
		slog.Error("marshal inquiry", "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.topic, nil, b); err != nil {
		slog.Error("publish inquiry", "error", err.Error())
	}
}
