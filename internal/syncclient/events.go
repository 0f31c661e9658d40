package syncclient

import (
	"github.com/google/uuid"
	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	StickySize         = 220
	DefaultStickyColor = "#FFD541"
)

// NewElementID returns an id unique across clients.
func NewElementID() string {
	return uuid.NewString()
}

// NewSticky builds a sticky note centered on pos.
func NewSticky(pos types.Point, text, color string) types.Element {
	if color == "" {
		color = DefaultStickyColor
	}

	x, y := pos.X-StickySize/2, pos.Y-StickySize/2
	w, h := float64(StickySize), float64(StickySize)

	return types.Element{
		Id:          NewElementID(),
		Type:        types.KindSticky,
		X:           &x,
		Y:           &y,
		Width:       &w,
		Height:      &h,
		Text:        &text,
		Color:       color,
		StrokeWidth: 3,
		Opacity:     1,
	}
}

// handle applies one server message. Messages for a room other than the
// current one are ignored.
func (c *Client) handle(msg *protocol.ServerMessage) {
	c.mu.Lock()

	var ev Event
	switch {
	case msg.InitState != nil:
		if !c.inRoomLocked(msg.InitState.RoomId) {
			c.mu.Unlock()
			return
		}
		c.membership.State = StateJoined
		clear(c.participants)
		for _, p := range msg.InitState.Participants {
			c.participants[p.ConnectionId] = p
		}
		ev = Event{Type: EventInitState, RoomId: msg.InitState.RoomId, Elements: msg.InitState.Elements}
	case msg.ElementUpdate != nil:
		if !c.inRoomLocked(msg.ElementUpdate.RoomId) {
			c.mu.Unlock()
			return
		}
		ev = Event{Type: EventElements, RoomId: msg.ElementUpdate.RoomId, Elements: msg.ElementUpdate.Elements}
	case msg.CursorUpdate != nil:
		u := msg.CursorUpdate
		if !c.inRoomLocked(u.RoomId) {
			c.mu.Unlock()
			return
		}
		p, ok := c.participants[u.ConnectionId]
		if !ok {
			p = types.Participant{ConnectionId: u.ConnectionId}
		}
		p.Cursor = u.Cursor
		c.participants[u.ConnectionId] = p
		ev = Event{Type: EventCursor, RoomId: u.RoomId, Participant: p}
	case msg.UserJoined != nil:
		u := msg.UserJoined
		if !c.inRoomLocked(u.RoomId) {
			c.mu.Unlock()
			return
		}
		p := types.Participant{ConnectionId: u.ConnectionId, Name: u.Name, Color: u.Color}
		c.participants[u.ConnectionId] = p
		ev = Event{Type: EventUserJoined, RoomId: u.RoomId, Participant: p}
	case msg.UserLeft != nil:
		u := msg.UserLeft
		if !c.inRoomLocked(u.RoomId) {
			c.mu.Unlock()
			return
		}
		p, ok := c.participants[u.ConnectionId]
		if !ok {
			p = types.Participant{ConnectionId: u.ConnectionId}
		}
		delete(c.participants, u.ConnectionId)
		ev = Event{Type: EventUserLeft, RoomId: u.RoomId, Participant: p}
	default:
		c.mu.Unlock()
		c.log.Println("dropping server message with no event")
		return
	}

	onElements, onCursor, onPresence := c.onElements, c.onCursor, c.onPresence
	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
		}
	}
	c.mu.Unlock()

	switch ev.Type {
	case EventInitState, EventElements:
		if onElements != nil {
			onElements(ev.Elements)
		}
	case EventCursor:
		if onCursor != nil {
			onCursor(ev.Participant.ConnectionId, ev.Participant.Cursor)
		}
	case EventUserJoined, EventUserLeft:
		if onPresence != nil {
			onPresence(ev)
		}
	}
}

func (c *Client) inRoomLocked(roomId string) bool {
	switch c.membership.State {
	case StateJoining, StateJoined:
		return c.membership.RoomId == roomId
	}
	return false
}
