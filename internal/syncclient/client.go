// Package syncclient is the client side of the whiteboard relay. A Client
// holds one websocket connection and at most one room membership at a time.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	sendBufferSize = 256
)

var (
	ErrNotJoined      = errors.New("not joined to a room")
	ErrClosed         = errors.New("client is closed")
	ErrSendBufferFull = errors.New("send buffer is full")
)

type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	send chan *protocol.ClientMessage
	// cursor holds at most the latest unsent cursor position.
	cursor    chan *protocol.ClientMessage
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	membership   Membership
	participants map[string]types.Participant
	onElements   func([]types.Element)
	onCursor     func(connectionId string, cursor types.Point)
	onPresence   func(Event)
	subs         map[int]chan Event
	nextSub      int
}

// Dial connects to the relay websocket endpoint at url.
func Dial(ctx context.Context, url string, l *log.Logger, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return NewClient(conn, l), nil
}

// NewClient takes ownership of conn and starts its read and write pumps.
func NewClient(conn *websocket.Conn, l *log.Logger) *Client {
	c := &Client{
		conn:         conn,
		log:          l,
		send:         make(chan *protocol.ClientMessage, sendBufferSize),
		cursor:       make(chan *protocol.ClientMessage, 1),
		done:         make(chan struct{}),
		participants: make(map[string]types.Participant),
		subs:         make(map[int]chan Event),
	}

	go c.write()
	go c.read()

	return c
}

func (c *Client) Membership() Membership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.membership
}

// Participants lists the other connections known to be in the current room,
// ordered by connection id.
func (c *Client) Participants() []types.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]types.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ConnectionId < list[j].ConnectionId })

	return list
}

// JoinRoom makes roomId the current room. Joining while already in a room
// switches membership; updates for the previous room are ignored from then
// on.
func (c *Client) JoinRoom(roomId, name, color string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.membership.State == StateClosed {
		return ErrClosed
	}

	msg := &protocol.ClientMessage{
		JoinRoom: &protocol.JoinRoom{RoomId: roomId, User: types.Identity{Name: name, Color: color}},
	}
	if err := c.enqueueLocked(msg); err != nil {
		return err
	}

	c.membership = Membership{State: StateJoining, RoomId: roomId}
	clear(c.participants)

	return nil
}

// BroadcastElements replaces the room's collection with elements. Call it on
// committed edits only.
func (c *Client) BroadcastElements(elements []types.Element) error {
	return c.emit(func(roomId string) *protocol.ClientMessage {
		return &protocol.ClientMessage{
			ElementsBroadcast: &protocol.ElementsBroadcast{RoomId: roomId, Elements: types.CloneElements(elements)},
		}
	})
}

// BroadcastCursor never blocks. A cursor not yet written is replaced by the
// newer one.
func (c *Client) BroadcastCursor(pos types.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomId, err := c.currentRoomLocked()
	if err != nil {
		return err
	}

	msg := &protocol.ClientMessage{CursorBroadcast: &protocol.CursorBroadcast{RoomId: roomId, Cursor: pos}}
	for {
		select {
		case c.cursor <- msg:
			return nil
		default:
		}

		select {
		case <-c.cursor:
		default:
		}
	}
}

func (c *Client) CreateSticky(note types.Element) error {
	return c.emit(func(roomId string) *protocol.ClientMessage {
		return &protocol.ClientMessage{
			StickyCreate: &protocol.StickyCreate{RoomId: roomId, Element: note.Clone()},
		}
	})
}

func (c *Client) MoveSticky(noteId string, pos types.Point) error {
	return c.emit(func(roomId string) *protocol.ClientMessage {
		return &protocol.ClientMessage{
			StickyMove: &protocol.StickyMove{RoomId: roomId, NoteId: noteId, Position: pos},
		}
	})
}

func (c *Client) UpdateStickyText(noteId, text string) error {
	return c.emit(func(roomId string) *protocol.ClientMessage {
		return &protocol.ClientMessage{
			StickyUpdateText: &protocol.StickyUpdateText{RoomId: roomId, NoteId: noteId, Text: text},
		}
	})
}

// OnElementsUpdate registers the single callback receiving full collection
// replacements, including the one sent in reply to a join. A later
// registration replaces the earlier one.
func (c *Client) OnElementsUpdate(fn func([]types.Element)) {
	c.mu.Lock()
	c.onElements = fn
	c.mu.Unlock()
}

func (c *Client) OnCursorUpdate(fn func(connectionId string, cursor types.Point)) {
	c.mu.Lock()
	c.onCursor = fn
	c.mu.Unlock()
}

// OnPresence receives EventUserJoined and EventUserLeft.
func (c *Client) OnPresence(fn func(Event)) {
	c.mu.Lock()
	c.onPresence = fn
	c.mu.Unlock()
}

// Subscribe returns an independent stream of every event for the current
// room. Events are dropped for a subscriber whose buffer is full. The channel
// is closed by the returned cancel func or when the client closes. A negative
// buf is treated as zero.
func (c *Client) Subscribe(buf int) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, max(buf, 0))
	if c.membership.State == StateClosed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close stops both pumps and closes the connection. It does not wait.
func (c *Client) Close() {
	c.shutdown()
}

// Done is closed once the client is closed, either by Close or by loss of
// the connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.membership.State = StateClosed
		for id, sub := range c.subs {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()

		close(c.done)
	})
}

func (c *Client) currentRoomLocked() (string, error) {
	switch c.membership.State {
	case StateClosed:
		return "", ErrClosed
	case StateIdle:
		return "", ErrNotJoined
	}
	return c.membership.RoomId, nil
}

func (c *Client) emit(build func(roomId string) *protocol.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomId, err := c.currentRoomLocked()
	if err != nil {
		return err
	}

	return c.enqueueLocked(build(roomId))
}

func (c *Client) enqueueLocked(msg *protocol.ClientMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) write() {
	defer func() {
		c.conn.Close()
		c.log.Println("sync client write exiting")
	}()

	for {
		// element and sticky messages go first so a cursor never overtakes
		// the join it depends on
		select {
		case msg := <-c.send:
			if !c.writeJSON(msg) {
				c.shutdown()
				return
			}
			continue
		default:
		}

		select {
		case msg := <-c.send:
			if !c.writeJSON(msg) {
				c.shutdown()
				return
			}
		case msg := <-c.cursor:
			if !c.writeJSON(msg) {
				c.shutdown()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) writeJSON(msg *protocol.ClientMessage) bool {
	msg.Timestamp = protocol.Now()
	bytes, err := json.Marshal(msg)
	if err != nil {
		c.log.Println("failed to serialize message:", err)
		return true
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
		c.log.Printf("write message: %s", err)
		return false
	}

	return true
}

func (c *Client) read() {
	defer func() {
		c.shutdown()
		c.conn.Close()
		c.log.Println("sync client read exiting")
	}()

	c.conn.SetReadLimit(protocol.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Printf("dropping malformed server message: %v", err)
			continue
		}

		c.handle(&msg)
	}
}
