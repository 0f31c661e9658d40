package syncclient

import (
	"github.com/npezzotti/go-whiteboard/internal/types"
)

type State int

const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Membership is the facade's single room membership. RoomId is empty while
// Idle.
type Membership struct {
	State  State
	RoomId string
}

type EventType int

const (
	// EventInitState carries the room's collection as of the join.
	EventInitState EventType = iota
	EventElements
	EventCursor
	EventUserJoined
	EventUserLeft
)

func (t EventType) String() string {
	switch t {
	case EventInitState:
		return "init-state"
	case EventElements:
		return "element-update"
	case EventCursor:
		return "cursor-update"
	case EventUserJoined:
		return "user-joined"
	case EventUserLeft:
		return "user-left"
	}
	return "unknown"
}

// Event is one inbound update for the current room, as delivered to
// subscribers. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType
	RoomId      string
	Elements    []types.Element
	Participant types.Participant
}
