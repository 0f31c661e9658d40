package server

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrElementNotFound     = errors.New("element not found")
	ErrDuplicateElement    = errors.New("duplicate element id")
)

type roomState struct {
	elements     []types.Element
	participants map[string]*types.Participant
}

// RoomStore holds the element collection and participants of every room.
// Rooms are created lazily on first join and live for the lifetime of the
// store. The store performs no merging: a replacement overwrites the whole
// collection. A write that would grow a collection past maxCollectionSize
// encoded bytes is refused and leaves the room unchanged.
type RoomStore struct {
	mu                sync.RWMutex
	rooms             map[string]*roomState
	maxCollectionSize int
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:             make(map[string]*roomState),
		maxCollectionSize: protocol.MaxCollectionSize,
	}
}

// EnsureRoom creates the room if needed and reports whether it was created.
func (s *RoomStore) EnsureRoom(roomId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomId]; ok {
		return false
	}

	s.rooms[roomId] = &roomState{
		elements:     []types.Element{},
		participants: make(map[string]*types.Participant),
	}
	return true
}

func (s *RoomStore) Exists(roomId string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rooms[roomId]
	return ok
}

func (s *RoomStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}

// GetElements returns a copy of the room's collection, or an empty slice if
// the room does not exist.
func (s *RoomStore) GetElements(roomId string) []types.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return []types.Element{}
	}
	return types.CloneElements(room.elements)
}

func (s *RoomStore) ReplaceElements(roomId string, elements []types.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	if err := protocol.CheckCollectionSize(elements, s.maxCollectionSize); err != nil {
		return err
	}

	room.elements = types.CloneElements(elements)
	return nil
}

func (s *RoomStore) AppendElement(roomId string, element types.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	if slices.ContainsFunc(room.elements, func(e types.Element) bool { return e.Id == element.Id }) {
		return ErrDuplicateElement
	}

	next := append(slices.Clip(room.elements), element.Clone())
	if err := protocol.CheckCollectionSize(next, s.maxCollectionSize); err != nil {
		return err
	}

	room.elements = next
	return nil
}

// MutateElementById replaces the matching element with a patched copy.
func (s *RoomStore) MutateElementById(roomId, elementId string, patch types.ElementPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	i := slices.IndexFunc(room.elements, func(e types.Element) bool {
		return e.Id == elementId
	})
	if i < 0 {
		return ErrElementNotFound
	}

	next := slices.Clone(room.elements)
	next[i] = patch.Apply(next[i])
	if err := protocol.CheckCollectionSize(next, s.maxCollectionSize); err != nil {
		return err
	}

	room.elements = next
	return nil
}

func (s *RoomStore) AddParticipant(roomId, connId string, user types.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	room.participants[connId] = &types.Participant{
		ConnectionId: connId,
		Name:         user.Name,
		Color:        user.Color,
	}
	return nil
}

func (s *RoomStore) SetParticipantCursor(roomId, connId string, cursor types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	p, ok := room.participants[connId]
	if !ok {
		return ErrParticipantNotFound
	}

	p.Cursor = cursor
	return nil
}

// RemoveParticipant deletes the participant and reports whether it was
// present. Removing an unknown participant is not an error.
func (s *RoomStore) RemoveParticipant(roomId, connId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return false
	}

	if _, ok := room.participants[connId]; !ok {
		return false
	}

	delete(room.participants, connId)
	return true
}

// Participants lists the room's participants ordered by connection id.
func (s *RoomStore) Participants(roomId string) []types.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return []types.Participant{}
	}

	out := make([]types.Participant, 0, len(room.participants))
	for _, p := range room.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectionId < out[j].ConnectionId
	})
	return out
}
