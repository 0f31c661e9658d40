package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &Client{id: "a"}
	b := &Client{id: "b"}

	r.Register(a)
	r.Register(b)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Lookup("a")
	assert.True(t, ok)
	assert.Same(t, a, got)

	r.Join(a, "room1")
	r.Join(a, "room2")
	r.Join(a, "room1")
	r.Join(b, "room1")

	assert.Equal(t, []string{"room1", "room2"}, r.RoomsOf(a))
	assert.Equal(t, []*Client{a, b}, r.Members("room1"))
	assert.Equal(t, []*Client{a}, r.Members("room2"))
	assert.True(t, r.IsMember(b, "room1"))
	assert.False(t, r.IsMember(b, "room2"))

	rooms := r.Unregister(a)
	assert.Equal(t, []string{"room1", "room2"}, rooms, "expected every joined room to be returned")
	assert.Equal(t, []*Client{b}, r.Members("room1"))
	assert.Empty(t, r.Members("room2"))
	assert.Empty(t, r.RoomsOf(a))

	_, ok = r.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	assert.Empty(t, r.Unregister(a), "expected unregistering twice to be a no-op")
}

func TestRegistry_UnregisterStaleClient(t *testing.T) {
	r := NewRegistry()
	old := &Client{id: "same"}
	cur := &Client{id: "same"}

	r.Register(old)
	r.Register(cur)
	r.Unregister(old)

	got, ok := r.Lookup("same")
	assert.True(t, ok, "expected newer client with the same id to stay registered")
	assert.Same(t, cur, got)
}
