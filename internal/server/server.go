package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

const (
	msgBufferSize = 1024

	metricActiveClients   = "NumActiveClients"
	metricRooms           = "NumRooms"
	metricDroppedMessages = "NumDroppedMessages"
)

var ErrHubClosed = errors.New("hub is shut down")

type inboundMessage struct {
	client     *Client
	msg        *protocol.ClientMessage
	disconnect bool
}

// Hub is the single owner of the room store and the session registry. All
// inbound events are handled to completion, one at a time, by Run.
type Hub struct {
	log          *log.Logger
	store        *RoomStore
	registry     *Registry
	stats        stats.StatsProvider
	registerChan chan *Client
	// msgChan carries every event and disconnect in the order each
	// connection produced them.
	msgChan chan *inboundMessage
	stop    chan struct{}
	done    chan struct{}
}

func NewHub(logger *log.Logger, store *RoomStore, su stats.StatsProvider) *Hub {
	su.RegisterMetric(metricActiveClients)
	su.RegisterMetric(metricRooms)
	su.RegisterMetric(metricDroppedMessages)

	return &Hub{
		log:          logger,
		store:        store,
		registry:     NewRegistry(),
		stats:        su,
		registerChan: make(chan *Client),
		msgChan:      make(chan *inboundMessage, msgBufferSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (h *Hub) Store() *RoomStore {
	return h.store
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerChan:
			h.registerClient(c)
		case in := <-h.msgChan:
			if in.disconnect {
				h.handleDisconnect(in.client)
				continue
			}
			h.dispatch(in.client, in.msg)
		case <-h.stop:
			h.log.Println("shutting down hub")
			for _, c := range h.registry.All() {
				c.stopClient()
			}

			close(h.done)
			return
		}
	}
}

// Register hands a new connection to the hub. It must be called before the
// connection's read pump starts.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

// Serve attaches an upgraded websocket connection to the hub and starts its
// pumps. The caller owns conn if an error is returned.
func (h *Hub) Serve(conn *websocket.Conn) (*Client, error) {
	c, err := NewClient(conn, h, h.log)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}

	if !h.Register(c) {
		return nil, ErrHubClosed
	}

	go c.Write()
	go c.Read()

	return c, nil
}

// submit queues msg behind the connection's earlier events. Cursors never
// block the read pump: they are dropped while the queue is full.
func (h *Hub) submit(c *Client, msg *protocol.ClientMessage) {
	in := &inboundMessage{client: c, msg: msg}
	if msg.CursorBroadcast != nil {
		select {
		case h.msgChan <- in:
		default:
			h.log.Printf("message queue full, dropping cursor from %q", c.id)
			h.stats.Incr(metricDroppedMessages)
		}
		return
	}

	select {
	case h.msgChan <- in:
	case <-h.done:
	}
}

func (h *Hub) disconnect(c *Client) {
	select {
	case h.msgChan <- &inboundMessage{client: c, disconnect: true}:
	case <-h.done:
	}
}

func (h *Hub) registerClient(c *Client) {
	h.log.Printf("registering connection %q", c.id)
	h.registry.Register(c)
	h.stats.Incr(metricActiveClients)
}

func (h *Hub) isRegistered(c *Client) bool {
	cur, ok := h.registry.Lookup(c.id)
	return ok && cur == c
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("received shutdown signal")
	select {
	case h.stop <- struct{}{}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
