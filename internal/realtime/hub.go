// Package realtime tracks live subscriber connections and fans events out to
// them. The Hub knows nothing about business rules; callers decide which
// users or projects an event is for.
package realtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yukikurage/timetracker-api/internal/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTransportFailure wraps every failed write to a connection.
	ErrTransportFailure = errors.New("realtime: transport failure")
	// ErrUnknownConnection is returned when a subscription names a connection
	// that is not registered with the hub.
	ErrUnknownConnection = errors.New("realtime: connection not registered")
)

const defaultFanoutLimit = 32

// Conn is one live duplex channel. Send must be safe for concurrent use and
// must give up within a bounded interval.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// PresenceFunc is called after a user's first connection registers (online)
// or after their last connection is removed (offline). It runs outside the
// registry lock.
type PresenceFunc func(userID uint64, online bool)

type registration struct {
	conn     Conn
	userID   uint64
	projects map[uint64]struct{}
}

// Hub owns the subscription registry. A single mutex guards the three
// indices; writes to connections happen outside of it.
type Hub struct {
	mu       sync.RWMutex
	users    map[uint64]map[string]Conn
	projects map[uint64]map[string]Conn
	conns    map[string]*registration

	presence    PresenceFunc
	fanoutLimit int
	log         *zap.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithPresence installs a presence callback.
func WithPresence(fn PresenceFunc) HubOption {
	return func(h *Hub) { h.presence = fn }
}

// WithFanoutLimit bounds how many connections are written to in parallel
// within a single send call.
func WithFanoutLimit(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.fanoutLimit = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		users:       make(map[uint64]map[string]Conn),
		projects:    make(map[uint64]map[string]Conn),
		conns:       make(map[string]*registration),
		fanoutLimit: defaultFanoutLimit,
		log:         log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetPresence replaces the presence callback. It is meant for wiring at
// startup, before connections arrive.
func (h *Hub) SetPresence(fn PresenceFunc) {
	h.mu.Lock()
	h.presence = fn
	h.mu.Unlock()
}

// Connect registers conn under userID and sends it the connection
// acknowledgement. If the acknowledgement cannot be written the connection is
// removed again and an ErrTransportFailure is returned.
func (h *Hub) Connect(conn Conn, userID uint64) error {
	h.mu.Lock()
	var wentOffline []uint64
	if prev, ok := h.conns[conn.ID()]; ok && prev.userID != userID {
		// Re-association moves the connection to the new user; project
		// memberships are dropped with the old identity.
		if h.removeLocked(prev) {
			wentOffline = append(wentOffline, prev.userID)
		}
	}
	reg, ok := h.conns[conn.ID()]
	if !ok {
		reg = &registration{conn: conn, userID: userID, projects: make(map[uint64]struct{})}
		h.conns[conn.ID()] = reg
	}
	group := h.users[userID]
	firstForUser := len(group) == 0
	if group == nil {
		group = make(map[string]Conn)
		h.users[userID] = group
	}
	group[conn.ID()] = conn
	presence := h.presence
	h.mu.Unlock()

	h.log.Debug("connection registered",
		zap.String("conn_id", conn.ID()),
		zap.Uint64("user_id", userID))

	h.notifyPresence(presence, wentOffline, false)

	ack := events.New(events.Connected{
		UserID:       userID,
		ConnectionID: conn.ID(),
		Message:      "Connected successfully",
	}, nil)
	payload, err := ack.Encode()
	if err != nil {
		return err
	}
	if err := h.send(conn, payload); err != nil {
		// A user whose first connection never got its ack was never
		// announced online, so no offline goes out either.
		h.discard(conn, !firstForUser)
		return err
	}

	if firstForUser {
		h.notifyPresence(presence, []uint64{userID}, true)
	}
	return nil
}

// Disconnect removes conn from every index. Removing an unknown connection is
// a no-op. It reports whether anything was removed.
func (h *Hub) Disconnect(conn Conn) bool {
	h.mu.Lock()
	reg, ok := h.conns[conn.ID()]
	if !ok || reg.conn != conn {
		h.mu.Unlock()
		return false
	}
	last := h.removeLocked(reg)
	presence := h.presence
	h.mu.Unlock()

	h.log.Debug("connection removed",
		zap.String("conn_id", conn.ID()),
		zap.Uint64("user_id", reg.userID))

	if last {
		h.notifyPresence(presence, []uint64{reg.userID}, false)
	}
	return true
}

// SubscribeProject adds conn to the project's broadcast group. Joining twice
// is harmless.
func (h *Hub) SubscribeProject(conn Conn, projectID uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	reg, ok := h.conns[conn.ID()]
	if !ok || reg.conn != conn {
		return ErrUnknownConnection
	}
	group := h.projects[projectID]
	if group == nil {
		group = make(map[string]Conn)
		h.projects[projectID] = group
	}
	group[conn.ID()] = conn
	reg.projects[projectID] = struct{}{}
	return nil
}

// UnsubscribeProject removes conn from the project's broadcast group. Leaving
// a group that was never joined is a no-op.
func (h *Hub) UnsubscribeProject(conn Conn, projectID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if reg, ok := h.conns[conn.ID()]; ok && reg.conn == conn {
		delete(reg.projects, projectID)
	}
	h.leaveProjectLocked(conn.ID(), projectID)
}

// SendToUser delivers ev to every connection of userID and returns how many
// deliveries succeeded. Failed connections are dropped from the registry.
func (h *Hub) SendToUser(userID uint64, ev events.Event) int {
	h.mu.RLock()
	targets := snapshot(h.users[userID])
	h.mu.RUnlock()
	return h.fanout(targets, ev)
}

// SendToProject delivers ev to every connection subscribed to projectID.
func (h *Hub) SendToProject(projectID uint64, ev events.Event) int {
	h.mu.RLock()
	targets := snapshot(h.projects[projectID])
	h.mu.RUnlock()
	return h.fanout(targets, ev)
}

// SendToConn delivers ev to a single registered connection.
func (h *Hub) SendToConn(conn Conn, ev events.Event) bool {
	h.mu.RLock()
	reg, ok := h.conns[conn.ID()]
	h.mu.RUnlock()
	if !ok || reg.conn != conn {
		return false
	}
	return h.fanout([]Conn{conn}, ev) == 1
}

// Broadcast delivers ev to every registered connection.
func (h *Hub) Broadcast(ev events.Event) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, reg := range h.conns {
		targets = append(targets, reg.conn)
	}
	h.mu.RUnlock()
	return h.fanout(targets, ev)
}

// ConnectionCount returns the number of live connections for userID.
func (h *Hub) ConnectionCount(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// TotalConnections returns the number of live connections.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ConnectedUsers returns the ids of users with at least one connection, in
// ascending order.
func (h *Hub) ConnectedUsers() []uint64 {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ProjectSubscriberCount returns the size of a project's broadcast group.
func (h *Hub) ProjectSubscriberCount(projectID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// IsSubscribed reports whether conn belongs to the project's group.
func (h *Hub) IsSubscribed(conn Conn, projectID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.projects[projectID][conn.ID()]
	return ok
}

// Shutdown closes and unregisters every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for _, reg := range h.conns {
		conns = append(conns, reg.conn)
	}
	h.users = make(map[uint64]map[string]Conn)
	h.projects = make(map[uint64]map[string]Conn)
	h.conns = make(map[string]*registration)
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			h.log.Debug("close on shutdown failed", zap.String("conn_id", c.ID()), zap.Error(err))
		}
	}
	h.log.Info("realtime hub shut down", zap.Int("connections", len(conns)))
}

func (h *Hub) fanout(targets []Conn, ev events.Event) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := ev.Encode()
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return 0
	}

	var (
		mu     sync.Mutex
		failed []Conn
		g      errgroup.Group
	)
	g.SetLimit(h.fanoutLimit)
	for _, c := range targets {
		c := c
		g.Go(func() error {
			if err := h.send(c, payload); err != nil {
				mu.Lock()
				failed = append(failed, c)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		h.drop(failed)
	}
	return len(targets) - len(failed)
}

func (h *Hub) send(c Conn, payload []byte) error {
	if err := c.Send(payload); err != nil {
		h.log.Warn("dropping connection after failed send",
			zap.String("conn_id", c.ID()),
			zap.Error(err))
		return fmt.Errorf("%w: connection %s: %v", ErrTransportFailure, c.ID(), err)
	}
	return nil
}

// discard removes a connection that failed during Connect. Offline presence
// is reported only when announce is set.
func (h *Hub) discard(conn Conn, announce bool) {
	h.mu.Lock()
	var last bool
	reg, ok := h.conns[conn.ID()]
	if ok && reg.conn == conn {
		last = h.removeLocked(reg)
	}
	presence := h.presence
	h.mu.Unlock()

	_ = conn.Close()
	if last && announce {
		h.notifyPresence(presence, []uint64{reg.userID}, false)
	}
}

// drop treats failed connections as disconnected.
func (h *Hub) drop(failed []Conn) {
	h.mu.Lock()
	var offline []uint64
	for _, c := range failed {
		reg, ok := h.conns[c.ID()]
		if !ok || reg.conn != c {
			continue
		}
		if h.removeLocked(reg) {
			offline = append(offline, reg.userID)
		}
	}
	presence := h.presence
	h.mu.Unlock()

	for _, c := range failed {
		_ = c.Close()
	}
	h.notifyPresence(presence, offline, false)
}

// removeLocked unregisters reg from every index and reports whether it was
// the user's last connection.
func (h *Hub) removeLocked(reg *registration) bool {
	id := reg.conn.ID()
	for projectID := range reg.projects {
		h.leaveProjectLocked(id, projectID)
	}
	delete(h.conns, id)

	group := h.users[reg.userID]
	delete(group, id)
	if len(group) == 0 {
		delete(h.users, reg.userID)
		return true
	}
	return false
}

func (h *Hub) leaveProjectLocked(connID string, projectID uint64) {
	group, ok := h.projects[projectID]
	if !ok {
		return
	}
	delete(group, connID)
	if len(group) == 0 {
		delete(h.projects, projectID)
	}
}

func (h *Hub) notifyPresence(fn PresenceFunc, userIDs []uint64, online bool) {
	if fn == nil {
		return
	}
	for _, id := range userIDs {
		fn(id, online)
	}
}

func snapshot(group map[string]Conn) []Conn {
	out := make([]Conn, 0, len(group))
	for _, c := range group {
		out = append(out, c)
	}
	return out
}
