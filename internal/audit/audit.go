package audit

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Event is one audit record. It never carries a raw token, only its jti.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	JTI       string            `json:"jti,omitempty"`
	TokenType string            `json:"token_type,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalZerologObject writes the event using the same field names as its
// JSON form, so a log line decodes back into an Event.
func (e Event) MarshalZerologObject(z *zerolog.Event) {
	z.Time("timestamp", e.Timestamp).
		Str("event_type", e.EventType).
		Bool("success", e.Success)
	if e.UserID != "" {
		z.Str("user_id", e.UserID)
	}
	if e.JTI != "" {
		z.Str("jti", e.JTI)
	}
	if e.TokenType != "" {
		z.Str("token_type", e.TokenType)
	}
	if e.Error != "" {
		z.Str("error", e.Error)
	}
	if len(e.Metadata) > 0 {
		d := zerolog.Dict()
		for k, v := range e.Metadata {
			d.Str(k, v)
		}
		z.Dict("metadata", d)
	}
}

// Sink receives emitted audit events. Emit is called from the dispatcher
// goroutine only.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer goroutine.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

// Emit waits for room in the channel unless ctx ends first.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

// LogSink records events on a zerolog logger at info level, or warn level
// for failures.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	lvl := zerolog.InfoLevel
	if !event.Success {
		lvl = zerolog.WarnLevel
	}
	s.log.WithLevel(lvl).EmbedObject(event).Msg("audit")
}

// JSONWriterSink writes one bare JSON object per event to w.
type JSONWriterSink struct {
	log zerolog.Logger
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{log: zerolog.New(zerolog.SyncWriter(w))}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	s.log.Log().EmbedObject(event).Send()
}
