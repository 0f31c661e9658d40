package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

var ErrInvalidMessage = errors.New("invalid message")

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every client to server event. Exactly
// one event member is set.
type ClientMessage struct {
	BaseMessage
	JoinRoom          *JoinRoom          `json:"join-room,omitempty"`
	ElementsBroadcast *ElementsBroadcast `json:"elements-broadcast,omitempty"`
	CursorBroadcast   *CursorBroadcast   `json:"cursor-broadcast,omitempty"`
	StickyCreate      *StickyCreate      `json:"sticky-note-create,omitempty"`
	StickyMove        *StickyMove        `json:"sticky-note-move,omitempty"`
	StickyUpdateText  *StickyUpdateText  `json:"sticky-note-update-text,omitempty"`
}

type JoinRoom struct {
	RoomId string         `json:"room_id"`
	User   types.Identity `json:"user"`
}

type ElementsBroadcast struct {
	RoomId   string          `json:"room_id"`
	Elements []types.Element `json:"elements"`
}

type CursorBroadcast struct {
	RoomId string      `json:"room_id"`
	Cursor types.Point `json:"cursor"`
}

type StickyCreate struct {
	RoomId  string        `json:"room_id"`
	Element types.Element `json:"element"`
}

type StickyMove struct {
	RoomId   string      `json:"room_id"`
	NoteId   string      `json:"note_id"`
	Position types.Point `json:"position"`
}

type StickyUpdateText struct {
	RoomId string `json:"room_id"`
	NoteId string `json:"note_id"`
	Text   string `json:"text"`
}

// RoomId returns the room the event is addressed to.
func (m *ClientMessage) RoomId() string {
	switch {
	case m.JoinRoom != nil:
		return m.JoinRoom.RoomId
	case m.ElementsBroadcast != nil:
		return m.ElementsBroadcast.RoomId
	case m.CursorBroadcast != nil:
		return m.CursorBroadcast.RoomId
	case m.StickyCreate != nil:
		return m.StickyCreate.RoomId
	case m.StickyMove != nil:
		return m.StickyMove.RoomId
	case m.StickyUpdateText != nil:
		return m.StickyUpdateText.RoomId
	}
	return ""
}

func (m *ClientMessage) eventCount() int {
	n := 0
	for _, set := range []bool{
		m.JoinRoom != nil,
		m.ElementsBroadcast != nil,
		m.CursorBroadcast != nil,
		m.StickyCreate != nil,
		m.StickyMove != nil,
		m.StickyUpdateText != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate is the minimal shape check applied before a message reaches the
// room store.
func (m *ClientMessage) Validate() error {
	if n := m.eventCount(); n != 1 {
		return fmt.Errorf("%w: expected one event, got %d", ErrInvalidMessage, n)
	}
	if m.RoomId() == "" {
		return fmt.Errorf("%w: missing room id", ErrInvalidMessage)
	}

	switch {
	case m.JoinRoom != nil:
		return validateIdentity(m.JoinRoom.User)
	case m.ElementsBroadcast != nil:
		if err := types.ValidateElements(m.ElementsBroadcast.Elements); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		if err := CheckCollectionSize(m.ElementsBroadcast.Elements, MaxCollectionSize); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	case m.StickyCreate != nil:
		if err := m.StickyCreate.Element.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	case m.StickyMove != nil:
		if m.StickyMove.NoteId == "" {
			return fmt.Errorf("%w: missing note id", ErrInvalidMessage)
		}
	case m.StickyUpdateText != nil:
		if m.StickyUpdateText.NoteId == "" {
			return fmt.Errorf("%w: missing note id", ErrInvalidMessage)
		}
	}

	return nil
}

type ServerMessage struct {
	BaseMessage
	InitState     *InitState     `json:"init-state,omitempty"`
	ElementUpdate *ElementUpdate `json:"element-update,omitempty"`
	CursorUpdate  *CursorUpdate  `json:"cursor-update,omitempty"`
	UserJoined    *UserJoined    `json:"user-joined,omitempty"`
	UserLeft      *UserLeft      `json:"user-left,omitempty"`
}

// InitState is the reply to a join, sent to the joining connection only.
type InitState struct {
	RoomId       string              `json:"room_id"`
	Elements     []types.Element     `json:"elements"`
	Participants []types.Participant `json:"participants"`
}

type ElementUpdate struct {
	RoomId   string          `json:"room_id"`
	Elements []types.Element `json:"elements"`
}

type CursorUpdate struct {
	RoomId       string      `json:"room_id"`
	ConnectionId string      `json:"connection_id"`
	Cursor       types.Point `json:"cursor"`
}

type UserJoined struct {
	RoomId       string `json:"room_id"`
	ConnectionId string `json:"connection_id"`
	Name         string `json:"name"`
	Color        string `json:"color,omitempty"`
}

type UserLeft struct {
	RoomId       string `json:"room_id"`
	ConnectionId string `json:"connection_id"`
}

func NewInitState(roomId string, elements []types.Element, participants []types.Participant) *ServerMessage {
	if participants == nil {
		participants = []types.Participant{}
	}
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		InitState: &InitState{
			RoomId:       roomId,
			Elements:     nonNil(elements),
			Participants: participants,
		},
	}
}

func NewElementUpdate(roomId string, elements []types.Element) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		ElementUpdate: &ElementUpdate{
			RoomId:   roomId,
			Elements: nonNil(elements),
		},
	}
}

func NewCursorUpdate(roomId, connId string, cursor types.Point) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		CursorUpdate: &CursorUpdate{
			RoomId:       roomId,
			ConnectionId: connId,
			Cursor:       cursor,
		},
	}
}

func NewUserJoined(roomId, connId string, user types.Identity) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserJoined: &UserJoined{
			RoomId:       roomId,
			ConnectionId: connId,
			Name:         user.Name,
			Color:        user.Color,
		},
	}
}

func NewUserLeft(roomId, connId string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserLeft: &UserLeft{
			RoomId:       roomId,
			ConnectionId: connId,
		},
	}
}

func nonNil(elements []types.Element) []types.Element {
	if elements == nil {
		return []types.Element{}
	}
	return elements
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
