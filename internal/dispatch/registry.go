package dispatch

import (
	"sort"

	"github.com/mcoot/tablebank/internal/model"
)

// Sender delivers outbound messages to one connection. Send must not block;
// it reports false when the message could not be queued.
type Sender interface {
	Send(msg Message) bool
}

// Binding ties a connection to a player seat in a session
type Binding struct {
	Code     model.SessionCode
	PlayerID model.PlayerID
}

type connection struct {
	id      model.ConnectionID
	sender  Sender
	binding *Binding
}

// Registry tracks live connections and the session each one is bound to.
// It is owned by the dispatcher loop and is not safe for concurrent use.
type Registry struct {
	conns    map[model.ConnectionID]*connection
	sessions map[model.SessionCode]map[model.ConnectionID]struct{}
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[model.ConnectionID]*connection),
		sessions: make(map[model.SessionCode]map[model.ConnectionID]struct{}),
	}
}

// Add registers a new, unbound connection
func (r *Registry) Add(id model.ConnectionID, sender Sender) {
	r.conns[id] = &connection{id: id, sender: sender}
}

// Remove forgets a connection, returning its binding if it had one
func (r *Registry) Remove(id model.ConnectionID) (Binding, bool) {
	b, ok := r.Unbind(id)
	delete(r.conns, id)
	return b, ok
}

// Bind attaches a connection to a session seat, replacing any earlier binding
func (r *Registry) Bind(id model.ConnectionID, code model.SessionCode, playerID model.PlayerID) {
	c, ok := r.conns[id]
	if !ok {
		return
	}
	r.Unbind(id)
	c.binding = &Binding{Code: code, PlayerID: playerID}
	members, ok := r.sessions[code]
	if !ok {
		members = make(map[model.ConnectionID]struct{})
		r.sessions[code] = members
	}
	members[id] = struct{}{}
}

// Unbind detaches a connection from its session, returning the old binding
func (r *Registry) Unbind(id model.ConnectionID) (Binding, bool) {
	c, ok := r.conns[id]
	if !ok || c.binding == nil {
		return Binding{}, false
	}
	b := *c.binding
	c.binding = nil
	if members, ok := r.sessions[b.Code]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.sessions, b.Code)
		}
	}
	return b, true
}

// Lookup returns the binding of a connection
func (r *Registry) Lookup(id model.ConnectionID) (Binding, bool) {
	c, ok := r.conns[id]
	if !ok || c.binding == nil {
		return Binding{}, false
	}
	return *c.binding, true
}

// Sender returns the sender for a connection, or nil
func (r *Registry) Sender(id model.ConnectionID) Sender {
	if c, ok := r.conns[id]; ok {
		return c.sender
	}
	return nil
}

// Members returns the connections bound to a session, in a stable order
func (r *Registry) Members(code model.SessionCode) []model.ConnectionID {
	members := r.sessions[code]
	ids := make([]model.ConnectionID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ConnectionsFor returns the connections bound to one player in a session
func (r *Registry) ConnectionsFor(code model.SessionCode, playerID model.PlayerID) []model.ConnectionID {
	var ids []model.ConnectionID
	for _, id := range r.Members(code) {
		if r.conns[id].binding.PlayerID == playerID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of live connections
func (r *Registry) Len() int {
	return len(r.conns)
}
