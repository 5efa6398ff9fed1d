// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/heyqbnk/mini-apps-backend-template/lib/netutil"
)

// PeerState is the lifecycle of one worker connection.
type PeerState int32

const (
	Unattached PeerState = iota
	Attached
	Closed
)

func (s PeerState) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("PeerState(%d)", int32(s))
	}
}

// DefaultPeerQueue is the outbound queue depth per peer when
// CoordinatorConfig leaves it zero.
const DefaultPeerQueue = 256

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// PeerQueue bounds each peer's outbound queue.
	PeerQueue int

	// Logger is required.
	Logger *slog.Logger
}

// Coordinator relays every message a peer sends to all attached peers.
type Coordinator struct {
	logger    *slog.Logger
	peerQueue int

	// mu serializes broadcasts and guards the peer set, so every peer
	// enqueues messages in the same order.
	mu     sync.Mutex
	peers  []*Peer
	closed bool
	nextID int

	wg sync.WaitGroup
}

// NewCoordinator builds an empty coordinator.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.Logger == nil {
		panic("fanout.NewCoordinator: Logger is required")
	}
	queue := config.PeerQueue
	if queue <= 0 {
		queue = DefaultPeerQueue
	}
	return &Coordinator{
		logger:    config.Logger.With("component", "coordinator"),
		peerQueue: queue,
	}
}

// Peer is the coordinator's side of one worker connection.
type Peer struct {
	id          int
	name        string
	conn        Conn
	coordinator *Coordinator
	logger      *slog.Logger

	state    atomic.Int32
	outbound chan Message
	dropped  atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// ID is the coordinator-assigned peer number, unique per Coordinator.
func (p *Peer) ID() int { return p.id }

// Name is the label the worker announced in its hello.
func (p *Peer) Name() string { return p.name }

// State reports where the peer is in its lifecycle.
func (p *Peer) State() PeerState { return PeerState(p.state.Load()) }

// Dropped counts messages discarded because this peer's queue was full.
func (p *Peer) Dropped() uint64 { return p.dropped.Load() }

// Done is closed when the peer reaches Closed.
func (p *Peer) Done() <-chan struct{} { return p.ctx.Done() }

// Attach registers conn under name, moves it to Attached, and starts
// its reader and writer. On a closed coordinator the peer is returned
// already Closed.
func (c *Coordinator) Attach(name string, conn Conn) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	peer := &Peer{
		name:        name,
		conn:        conn,
		coordinator: c,
		outbound:    make(chan Message, c.peerQueue),
		ctx:         ctx,
		cancel:      cancel,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		peer.logger = c.logger.With("peer", name)
		peer.Close()
		return peer
	}
	c.nextID++
	peer.id = c.nextID
	peer.logger = c.logger.With("peer", name, "peer_id", peer.id)
	peer.state.Store(int32(Attached))
	c.peers = append(c.peers, peer)
	c.wg.Add(2)
	c.mu.Unlock()

	go peer.readLoop()
	go peer.writeLoop()
	peer.logger.Info("peer attached")
	return peer
}

// Peers returns the attached peers in attach order.
func (c *Coordinator) Peers() []*Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Peer(nil), c.peers...)
}

// Close closes every peer and waits for their goroutines. Later
// Attach calls return Closed peers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	peers := append([]*Peer(nil), c.peers...)
	c.mu.Unlock()

	for _, peer := range peers {
		peer.Close()
	}
	c.wg.Wait()
}

// broadcast enqueues message for every attached peer without
// blocking.
func (c *Coordinator) broadcast(message Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, peer := range c.peers {
		if peer.State() != Attached {
			continue
		}
		select {
		case peer.outbound <- message:
		default:
			peer.dropped.Add(1)
			peer.logger.Debug("peer queue full, message dropped", "trigger", message.Trigger)
		}
	}
}

func (c *Coordinator) remove(peer *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, candidate := range c.peers {
		if candidate == peer {
			c.peers = append(c.peers[:index:index], c.peers[index+1:]...)
			return
		}
	}
}

// Close moves the peer to Closed, removes it from the broadcast set,
// and closes its connection. Queued messages are discarded.
// Idempotent.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		previous := PeerState(p.state.Swap(int32(Closed)))
		p.cancel()
		p.conn.Close()
		p.coordinator.remove(p)
		if previous == Attached {
			p.logger.Info("peer closed", "dropped_messages", p.dropped.Load())
		}
	})
}

func (p *Peer) readLoop() {
	defer p.coordinator.wg.Done()
	defer p.Close()
	for {
		message, err := p.conn.Receive()
		if err != nil {
			if p.ctx.Err() == nil {
				p.logReceiveError(err)
			}
			return
		}
		p.coordinator.broadcast(message)
	}
}

func (p *Peer) logReceiveError(err error) {
	if netutil.IsExpectedCloseError(err) {
		p.logger.Debug("peer disconnected", "error", err)
		return
	}
	p.logger.Warn("peer receive failed", "error", err)
}

func (p *Peer) writeLoop() {
	defer p.coordinator.wg.Done()
	for {
		select {
		case message := <-p.outbound:
			if err := p.conn.Send(p.ctx, message); err != nil {
				if p.ctx.Err() == nil {
					p.logger.Debug("peer send failed", "error", err)
				}
				p.Close()
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}
