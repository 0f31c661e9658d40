package server

import "sort"

// Registry tracks live connections and the rooms each one has joined so a
// disconnect can be cleaned up in every room. It is owned by the hub loop
// and is not safe for concurrent use.
type Registry struct {
	clients map[string]*Client
	rooms   map[*Client]map[string]struct{}
	members map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		rooms:   make(map[*Client]map[string]struct{}),
		members: make(map[string]map[*Client]struct{}),
	}
}

func (r *Registry) Register(c *Client) {
	r.clients[c.id] = c
	if r.rooms[c] == nil {
		r.rooms[c] = make(map[string]struct{})
	}
}

func (r *Registry) Lookup(connId string) (*Client, bool) {
	c, ok := r.clients[connId]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.clients)
}

// Join records membership of c in roomId. Joining a room twice is a no-op.
func (r *Registry) Join(c *Client, roomId string) {
	if r.rooms[c] == nil {
		r.rooms[c] = make(map[string]struct{})
	}
	r.rooms[c][roomId] = struct{}{}

	if r.members[roomId] == nil {
		r.members[roomId] = make(map[*Client]struct{})
	}
	r.members[roomId][c] = struct{}{}
}

func (r *Registry) IsMember(c *Client, roomId string) bool {
	_, ok := r.members[roomId][c]
	return ok
}

// Members returns the connections in roomId ordered by connection id.
func (r *Registry) Members(roomId string) []*Client {
	out := make([]*Client, 0, len(r.members[roomId]))
	for c := range r.members[roomId] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].id < out[j].id
	})
	return out
}

// RoomsOf returns the rooms c has joined, sorted.
func (r *Registry) RoomsOf(c *Client) []string {
	out := make([]string, 0, len(r.rooms[c]))
	for id := range r.rooms[c] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Unregister removes c everywhere and returns the rooms it belonged to.
func (r *Registry) Unregister(c *Client) []string {
	rooms := r.RoomsOf(c)
	for _, id := range rooms {
		delete(r.members[id], c)
		if len(r.members[id]) == 0 {
			delete(r.members, id)
		}
	}

	delete(r.rooms, c)
	if cur, ok := r.clients[c.id]; ok && cur == c {
		delete(r.clients, c.id)
	}
	return rooms
}

// All returns every registered connection.
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
