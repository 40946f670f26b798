package ws

import (
	"context"
	"fmt"

	"chat-core/contract"
	"chat-core/domain/event"
)

// Ensure *Sink implements the contract at compile time.
var _ contract.EventSink = (*Sink)(nil)

// Sink bridges the coordination layer to one connection's write pump.
// Consume never blocks: a full send buffer means the connection is too slow
// to keep up, and the event is dropped for that recipient only.
type Sink struct {
	send chan<- []byte
}

func NewSink(send chan<- []byte) *Sink {
	return &Sink{send: send}
}

func (s *Sink) Consume(_ context.Context, e event.DomainEvent) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full, dropping %s", e.EventName())
	}
}
