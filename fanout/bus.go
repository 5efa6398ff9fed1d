// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/heyqbnk/mini-apps-backend-template/lib/netutil"
	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
)

var (
	// ErrBusStopped is returned by Publish after Run has returned.
	ErrBusStopped = errors.New("fanout: bus stopped")

	// ErrRelayClosed is returned by Run when the coordinator goes away.
	ErrRelayClosed = errors.New("fanout: relay connection closed")
)

// Handler receives a delivered payload. Errors and panics are reported
// and never reach the publisher or other handlers.
//
// Handlers run one at a time on the bus dispatcher and must not block:
// hand slow work to a buffered queue and return. A blocked handler
// fills the dispatch queue, the relay reader then stops reading, and
// once the coordinator's write to this worker passes its five second
// deadline the peer is closed and Run returns ErrRelayClosed. ctx is
// cancelled when Run returns.
type Handler func(ctx context.Context, payload Payload) error

// SubscriptionID identifies a Subscribe call. IDs are never reused
// within a Bus.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// DefaultQueueSize is the dispatch queue depth when BusConfig leaves it
// zero.
const DefaultQueueSize = 256

// BusConfig configures a Bus.
type BusConfig struct {
	// Relay is the connection to the coordinator. Nil builds a
	// single-process bus that dispatches its own publishes.
	Relay Conn

	// QueueSize bounds messages waiting for the dispatcher.
	QueueSize int

	// Reporter receives handler failures at error severity.
	Reporter report.Reporter

	// Logger is required.
	Logger *slog.Logger
}

// Bus is the per-process subscription registry. It is safe for
// concurrent use. Handlers run one at a time on the dispatcher
// goroutine started by Run, in subscription order.
type Bus struct {
	relay    Conn
	reporter report.Reporter
	logger   *slog.Logger

	mu            sync.RWMutex
	subscriptions map[string][]subscription
	triggers      map[SubscriptionID]string
	nextID        atomic.Uint64

	queue   chan Message
	stopped chan struct{}
	running atomic.Bool
}

// NewBus builds a bus. Call Run before expecting deliveries.
func NewBus(config BusConfig) *Bus {
	if config.Logger == nil {
		panic("fanout.NewBus: Logger is required")
	}
	size := config.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	reporter := config.Reporter
	if reporter == nil {
		reporter = report.Discard
	}
	mode := "local"
	if config.Relay != nil {
		mode = "worker"
	}
	return &Bus{
		relay:         config.Relay,
		reporter:      reporter,
		logger:        config.Logger.With("component", "fanout", "mode", mode),
		subscriptions: make(map[string][]subscription),
		triggers:      make(map[SubscriptionID]string),
		queue:         make(chan Message, size),
		stopped:       make(chan struct{}),
	}
}

// Subscribe registers handler for trigger.
func (b *Bus) Subscribe(trigger string, handler Handler) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))

	b.mu.Lock()
	defer b.mu.Unlock()
	// Replace rather than append in place: dispatch iterates the old
	// slice without holding the lock.
	current := b.subscriptions[trigger]
	b.subscriptions[trigger] = append(slices.Clip(current), subscription{id: id, handler: handler})
	b.triggers[id] = trigger
	return id
}

// Unsubscribe removes a subscription. It reports false for an unknown
// or already removed id. A message already being dispatched may still
// reach the handler.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	trigger, ok := b.triggers[id]
	if !ok {
		return false
	}
	delete(b.triggers, id)
	remaining := slices.DeleteFunc(slices.Clone(b.subscriptions[trigger]), func(s subscription) bool {
		return s.id == id
	})
	if len(remaining) == 0 {
		delete(b.subscriptions, trigger)
	} else {
		b.subscriptions[trigger] = remaining
	}
	return true
}

// Subscribers returns how many handlers trigger has.
func (b *Bus) Subscribers(trigger string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[trigger])
}

// Publish encodes payload and hands it to the dispatch path: the local
// dispatch queue, or in a worker the coordinator connection. It
// returns once the message is accepted there, not once it has been
// delivered.
func (b *Bus) Publish(ctx context.Context, trigger string, payload any) error {
	message, err := NewMessage(trigger, payload)
	if err != nil {
		return err
	}
	select {
	case <-b.stopped:
		return ErrBusStopped
	default:
	}

	if b.relay != nil {
		if err := b.relay.Send(ctx, message); err != nil {
			return fmt.Errorf("fanout: publishing %q: %w", trigger, err)
		}
		return nil
	}
	return b.enqueue(ctx, message)
}

func (b *Bus) enqueue(ctx context.Context, message Message) error {
	select {
	case b.queue <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopped:
		return ErrBusStopped
	}
}

// Run dispatches messages until ctx is cancelled, returning nil, or,
// in a worker, until the coordinator connection ends, returning
// ErrRelayClosed. It closes the relay on return. Run may be called
// once.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("fanout: Run called twice")
	}
	defer close(b.stopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relayErr := make(chan error, 1)
	if b.relay != nil {
		go func() { relayErr <- b.receive(ctx) }()
		defer b.relay.Close()
	}

	for {
		select {
		case message := <-b.queue:
			b.dispatch(ctx, message)
		case <-ctx.Done():
			return nil
		case err := <-relayErr:
			return err
		}
	}
}

// receive moves relayed messages onto the dispatch queue.
func (b *Bus) receive(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { b.relay.Close() })
	defer stop()

	for {
		message, err := b.relay.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if netutil.IsExpectedCloseError(err) {
				b.logger.Info("relay connection closed")
			} else {
				b.logger.Error("relay receive failed", "error", err)
			}
			return fmt.Errorf("%w: %w", ErrRelayClosed, err)
		}
		select {
		case b.queue <- message:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, message Message) {
	b.mu.RLock()
	handlers := b.subscriptions[message.Trigger]
	b.mu.RUnlock()

	payload := Payload{raw: message.Payload}
	for _, entry := range handlers {
		if err := b.invoke(ctx, entry.handler, payload); err != nil {
			b.logger.Debug("subscription handler failed",
				"trigger", message.Trigger,
				"subscription", uint64(entry.id),
				"error", err,
			)
			b.reporter.Report(fmt.Errorf("fanout: handler for %q: %w", message.Trigger, err), report.Error)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, handler Handler, payload Payload) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return handler(ctx, payload)
}
