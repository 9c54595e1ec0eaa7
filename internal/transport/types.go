// Package transport defines the outbound message boundary. Concrete senders
// live in subpackages (discord, telegram).
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one outbound remote notification.
//
// Text uses "**bold**" markup; senders translate it for their platform.
// Mention asks the sender to attach its attention ping.
type Message struct {
	Text    string
	Mention bool
}

// Sender delivers a message to one remote channel. Send is fire-and-forget
// from the caller's point of view: failures are reported, never retried.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Closer is implemented by senders holding resources.
type Closer interface {
	Close() error
}

// Fanout delivers to every sender and joins their errors.
type Fanout []Sender

func (f Fanout) Name() string {
	names := make([]string, 0, len(f))
	for _, s := range f {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (f Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
