package server

import (
	"errors"

	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

func (h *Hub) dispatch(c *Client, msg *protocol.ClientMessage) {
	if !h.isRegistered(c) {
		h.log.Printf("dropping message from unregistered connection %q", c.id)
		return
	}

	switch {
	case msg.JoinRoom != nil:
		h.handleJoin(c, msg.JoinRoom)
	case msg.ElementsBroadcast != nil:
		h.handleElementsBroadcast(c, msg.ElementsBroadcast)
	case msg.CursorBroadcast != nil:
		h.handleCursorBroadcast(c, msg.CursorBroadcast)
	case msg.StickyCreate != nil:
		h.handleStickyCreate(c, msg.StickyCreate)
	case msg.StickyMove != nil:
		h.handleStickyMove(c, msg.StickyMove)
	case msg.StickyUpdateText != nil:
		h.handleStickyUpdateText(c, msg.StickyUpdateText)
	}
}

func (h *Hub) handleJoin(c *Client, join *protocol.JoinRoom) {
	if h.store.EnsureRoom(join.RoomId) {
		h.log.Printf("created room %q", join.RoomId)
		h.stats.Incr(metricRooms)
	}

	others := make([]types.Participant, 0)
	for _, p := range h.store.Participants(join.RoomId) {
		if p.ConnectionId != c.id {
			others = append(others, p)
		}
	}

	if err := h.store.AddParticipant(join.RoomId, c.id, join.User); err != nil {
		h.drop(c, "join-room", join.RoomId, err)
		return
	}
	h.registry.Join(c, join.RoomId)

	// the joiner gets the snapshot, everyone else gets a notice
	c.queueMessage(protocol.NewInitState(join.RoomId, h.store.GetElements(join.RoomId), others))
	h.broadcast(join.RoomId, protocol.NewUserJoined(join.RoomId, c.id, join.User), c)

	h.log.Printf("user %q (%s) joined room %q", join.User.Name, c.id, join.RoomId)
}

func (h *Hub) handleElementsBroadcast(c *Client, msg *protocol.ElementsBroadcast) {
	if err := h.store.ReplaceElements(msg.RoomId, msg.Elements); err != nil {
		h.drop(c, "elements-broadcast", msg.RoomId, err)
		return
	}

	h.broadcast(msg.RoomId, protocol.NewElementUpdate(msg.RoomId, h.store.GetElements(msg.RoomId)), c)
}

func (h *Hub) handleCursorBroadcast(c *Client, msg *protocol.CursorBroadcast) {
	if err := h.store.SetParticipantCursor(msg.RoomId, c.id, msg.Cursor); err != nil {
		h.drop(c, "cursor-broadcast", msg.RoomId, err)
		return
	}

	h.broadcast(msg.RoomId, protocol.NewCursorUpdate(msg.RoomId, c.id, msg.Cursor), c)
}

// handleStickyCreate echoes the resulting collection to the sender as well,
// since note creation is confirmed by the server rather than applied locally.
func (h *Hub) handleStickyCreate(c *Client, msg *protocol.StickyCreate) {
	if err := h.store.AppendElement(msg.RoomId, msg.Element); err != nil {
		h.drop(c, "sticky-note-create", msg.RoomId, err)
		return
	}

	h.broadcast(msg.RoomId, protocol.NewElementUpdate(msg.RoomId, h.store.GetElements(msg.RoomId)), nil)
}

func (h *Hub) handleStickyMove(c *Client, msg *protocol.StickyMove) {
	x, y := msg.Position.X, msg.Position.Y
	h.mutateAndBroadcast(c, "sticky-note-move", msg.RoomId, msg.NoteId, types.ElementPatch{X: &x, Y: &y})
}

func (h *Hub) handleStickyUpdateText(c *Client, msg *protocol.StickyUpdateText) {
	text := msg.Text
	h.mutateAndBroadcast(c, "sticky-note-update-text", msg.RoomId, msg.NoteId, types.ElementPatch{Text: &text})
}

// mutateAndBroadcast applies patch to a single element. A missing element
// leaves the collection unchanged, but the collection is still relayed.
func (h *Hub) mutateAndBroadcast(c *Client, event, roomId, elementId string, patch types.ElementPatch) {
	err := h.store.MutateElementById(roomId, elementId, patch)
	switch {
	case errors.Is(err, ErrElementNotFound):
		h.log.Printf("%s: element %q not found in room %q", event, elementId, roomId)
	case err != nil:
		h.drop(c, event, roomId, err)
		return
	}

	h.broadcast(roomId, protocol.NewElementUpdate(roomId, h.store.GetElements(roomId)), c)
}

func (h *Hub) handleDisconnect(c *Client) {
	if !h.isRegistered(c) {
		return
	}

	for _, roomId := range h.registry.Unregister(c) {
		if !h.store.RemoveParticipant(roomId, c.id) {
			h.log.Printf("connection %q had no participant entry in room %q", c.id, roomId)
		}
		h.broadcast(roomId, protocol.NewUserLeft(roomId, c.id), c)
		h.log.Printf("connection %q left room %q", c.id, roomId)
	}

	h.stats.Decr(metricActiveClients)
	c.stopClient()
}

// broadcast queues msg for every connection in the room except skip.
func (h *Hub) broadcast(roomId string, msg *protocol.ServerMessage, skip *Client) {
	for _, client := range h.registry.Members(roomId) {
		if client == skip {
			continue
		}

		if !client.queueMessage(msg) {
			h.stats.Incr(metricDroppedMessages)
		}
	}
}

func (h *Hub) drop(c *Client, event, roomId string, err error) {
	h.log.Printf("dropping %s from %q for room %q: %v", event, c.id, roomId, err)
	h.stats.Incr(metricDroppedMessages)
}
