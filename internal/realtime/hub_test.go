package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/timetracker-api/internal/events"
	"go.uber.org/zap"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
	gate   chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) setFail(v bool) {
	c.mu.Lock()
	c.fail = v
	c.mu.Unlock()
}

func (c *fakeConn) received() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.msgs))
	for _, m := range c.msgs {
		var decoded map[string]any
		if err := json.Unmarshal(m, &decoded); err == nil {
			out = append(out, decoded)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	var out []string
	for _, m := range c.received() {
		out = append(out, fmt.Sprint(m["type"]))
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type HubTestSuite struct {
	suite.Suite
	hub *Hub
}

func (s *HubTestSuite) SetupTest() {
	s.hub = NewHub(zap.NewNop())
}

func (s *HubTestSuite) connect(id string, userID uint64) *fakeConn {
	c := newFakeConn(id)
	s.Require().NoError(s.hub.Connect(c, userID))
	return c
}

func ping() events.Event {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return events.New(events.SystemNotification{Title: "t", Message: "m", Level: "info", CreatedAt: now}, &now)
}

func (s *HubTestSuite) TestConnect_SendsAcknowledgement() {
	c := s.connect("c1", 42)

	msgs := c.received()
	s.Require().Len(msgs, 1)
	s.Equal("connection", msgs[0]["type"])
	s.Nil(msgs[0]["timestamp"])

	data := msgs[0]["data"].(map[string]any)
	s.EqualValues(42, data["user_id"])
	s.Equal("c1", data["connection_id"])
	s.Equal("Connected successfully", data["message"])

	s.Equal(1, s.hub.ConnectionCount(42))
	s.Equal(1, s.hub.TotalConnections())
}

func (s *HubTestSuite) TestConnect_AckFailureLeavesNothingRegistered() {
	c := newFakeConn("c1")
	c.setFail(true)

	err := s.hub.Connect(c, 42)
	s.Require().Error(err)
	s.True(errors.Is(err, ErrTransportFailure))
	s.Equal(0, s.hub.ConnectionCount(42))
	s.Equal(0, s.hub.TotalConnections())
	s.Empty(s.hub.ConnectedUsers())
}

func (s *HubTestSuite) TestConnect_ReassociationMovesConnection() {
	c := s.connect("c1", 1)
	s.Require().NoError(s.hub.SubscribeProject(c, 9))

	s.Require().NoError(s.hub.Connect(c, 2))

	s.Equal(0, s.hub.ConnectionCount(1))
	s.Equal(1, s.hub.ConnectionCount(2))
	s.Equal(1, s.hub.TotalConnections())
	s.False(s.hub.IsSubscribed(c, 9))
	s.Equal([]uint64{2}, s.hub.ConnectedUsers())
}

func (s *HubTestSuite) TestDisconnect_RemovesFromEveryIndex() {
	c := s.connect("c1", 1)
	s.Require().NoError(s.hub.SubscribeProject(c, 7))
	s.Require().NoError(s.hub.SubscribeProject(c, 8))

	s.True(s.hub.Disconnect(c))

	s.Equal(0, s.hub.ConnectionCount(1))
	s.Equal(0, s.hub.ProjectSubscriberCount(7))
	s.Equal(0, s.hub.ProjectSubscriberCount(8))
	s.Empty(s.hub.ConnectedUsers())
	s.Equal(0, s.hub.SendToProject(7, ping()))
}

func (s *HubTestSuite) TestDisconnect_Idempotent() {
	c := s.connect("c1", 1)

	s.True(s.hub.Disconnect(c))
	s.False(s.hub.Disconnect(c))
	s.False(s.hub.Disconnect(newFakeConn("never-seen")))
	s.Equal(0, s.hub.TotalConnections())
}

func (s *HubTestSuite) TestSendToUser_ReachesEveryDevice() {
	laptop := s.connect("laptop", 5)
	phone := s.connect("phone", 5)
	other := s.connect("other", 6)

	s.Equal(2, s.hub.SendToUser(5, ping()))

	s.Equal([]string{"connection", "system_notification"}, laptop.types())
	s.Equal([]string{"connection", "system_notification"}, phone.types())
	s.Equal([]string{"connection"}, other.types())
}

func (s *HubTestSuite) TestSendToUser_NoConnectionsIsNoop() {
	s.Equal(0, s.hub.SendToUser(404, ping()))
}

func (s *HubTestSuite) TestSendToProject_OnlySubscribers() {
	a := s.connect("a", 1)
	b := s.connect("b", 2)
	s.Require().NoError(s.hub.SubscribeProject(a, 3))

	s.Equal(1, s.hub.SendToProject(3, ping()))
	s.Len(a.received(), 2)
	s.Len(b.received(), 1)
}

func (s *HubTestSuite) TestSendToProject_AfterOneSubscriberLeaves() {
	c1 := s.connect("c1", 1)
	c2 := s.connect("c2", 2)
	s.Require().NoError(s.hub.SubscribeProject(c1, 42))
	s.Require().NoError(s.hub.SubscribeProject(c2, 42))

	s.Equal(2, s.hub.SendToProject(42, ping()))
	s.Equal([]string{"connection", "system_notification"}, c1.types())
	s.Equal([]string{"connection", "system_notification"}, c2.types())

	s.True(s.hub.Disconnect(c1))

	s.Equal(1, s.hub.SendToProject(42, ping()))
	s.Len(c1.received(), 2)
	s.Equal([]string{"connection", "system_notification", "system_notification"}, c2.types())
}

func (s *HubTestSuite) TestSubscribe_UnknownConnection() {
	err := s.hub.SubscribeProject(newFakeConn("ghost"), 3)
	s.ErrorIs(err, ErrUnknownConnection)
	s.Equal(0, s.hub.ProjectSubscriberCount(3))
}

func (s *HubTestSuite) TestSubscribe_Idempotent() {
	c := s.connect("c1", 1)
	s.Require().NoError(s.hub.SubscribeProject(c, 3))
	s.Require().NoError(s.hub.SubscribeProject(c, 3))

	s.Equal(1, s.hub.ProjectSubscriberCount(3))
	s.Equal(1, s.hub.SendToProject(3, ping()))
	s.Len(c.received(), 2)
}

func (s *HubTestSuite) TestUnsubscribe() {
	c := s.connect("c1", 1)
	s.hub.UnsubscribeProject(c, 3)

	s.Require().NoError(s.hub.SubscribeProject(c, 3))
	s.hub.UnsubscribeProject(c, 3)

	s.False(s.hub.IsSubscribed(c, 3))
	s.Equal(0, s.hub.SendToProject(3, ping()))
	s.Equal(1, s.hub.ConnectionCount(1))
}

func (s *HubTestSuite) TestFailedSendRemovesOnlyThatConnection() {
	good := s.connect("good", 1)
	bad := s.connect("bad", 1)
	s.Require().NoError(s.hub.SubscribeProject(bad, 3))
	bad.setFail(true)

	s.Equal(1, s.hub.SendToUser(1, ping()))

	s.Equal(1, s.hub.ConnectionCount(1))
	s.Equal(0, s.hub.ProjectSubscriberCount(3))
	s.True(bad.isClosed())
	s.False(good.isClosed())
	s.Len(good.received(), 2)
}

func (s *HubTestSuite) TestBroadcast_ReachesAllAndIsolatesFailures() {
	conns := []*fakeConn{
		s.connect("a", 1),
		s.connect("b", 2),
		s.connect("c", 3),
	}
	conns[1].setFail(true)

	s.Equal(2, s.hub.Broadcast(ping()))
	s.Equal(2, s.hub.TotalConnections())
	s.Equal([]uint64{1, 3}, s.hub.ConnectedUsers())
	s.Len(conns[0].received(), 2)
	s.Len(conns[2].received(), 2)
}

func (s *HubTestSuite) TestSlowSubscriberDoesNotHoldBackOthers() {
	slow := s.connect("slow", 1)
	fast := s.connect("fast", 2)

	gate := make(chan struct{})
	slow.mu.Lock()
	slow.gate = gate
	slow.mu.Unlock()

	done := make(chan int)
	go func() { done <- s.hub.Broadcast(ping()) }()

	s.Eventually(func() bool { return len(fast.received()) == 2 }, time.Second, 5*time.Millisecond)
	close(gate)
	s.Equal(2, <-done)
}

func (s *HubTestSuite) TestConnectedUsersSorted() {
	s.connect("x", 30)
	s.connect("y", 10)
	s.connect("z", 20)
	s.connect("w", 10)

	s.Equal([]uint64{10, 20, 30}, s.hub.ConnectedUsers())
	s.Equal(4, s.hub.TotalConnections())
}

func (s *HubTestSuite) TestShutdownClosesEverything() {
	a := s.connect("a", 1)
	b := s.connect("b", 2)

	s.hub.Shutdown()

	s.True(a.isClosed())
	s.True(b.isClosed())
	s.Equal(0, s.hub.TotalConnections())
}

func TestHubTestSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}

func TestPresenceCallbacks(t *testing.T) {
	type change struct {
		user   uint64
		online bool
	}
	var (
		mu      sync.Mutex
		changes []change
	)
	hub := NewHub(zap.NewNop(), WithPresence(func(userID uint64, online bool) {
		mu.Lock()
		changes = append(changes, change{userID, online})
		mu.Unlock()
	}))

	first := newFakeConn("first")
	second := newFakeConn("second")
	require.NoError(t, hub.Connect(first, 1))
	require.NoError(t, hub.Connect(second, 1))
	hub.Disconnect(first)
	hub.Disconnect(second)

	assert.Equal(t, []change{{1, true}, {1, false}}, changes)
}

func TestPresence_FailedSendTriggersOffline(t *testing.T) {
	var offline []uint64
	hub := NewHub(zap.NewNop(), WithPresence(func(userID uint64, online bool) {
		if !online {
			offline = append(offline, userID)
		}
	}))

	c := newFakeConn("c")
	require.NoError(t, hub.Connect(c, 8))
	c.setFail(true)
	hub.SendToUser(8, ping())

	assert.Equal(t, []uint64{8}, offline)
}

func TestPresence_FailedAckAnnouncesNothing(t *testing.T) {
	var calls int
	hub := NewHub(zap.NewNop(), WithPresence(func(userID uint64, online bool) {
		calls++
	}))

	c := newFakeConn("c")
	c.setFail(true)
	require.Error(t, hub.Connect(c, 8))

	assert.Zero(t, calls)
	assert.True(t, c.isClosed())
	assert.Zero(t, hub.ConnectionCount(8))
}

func TestConcurrentRegistryOperations(t *testing.T) {
	hub := NewHub(zap.NewNop(), WithFanoutLimit(4))

	const users = 8
	const perUser = 10

	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(userID uint64, n int) {
				defer wg.Done()
				c := newFakeConn(fmt.Sprintf("u%d-c%d", userID, n))
				if err := hub.Connect(c, userID); err != nil {
					t.Errorf("connect: %v", err)
					return
				}
				_ = hub.SubscribeProject(c, userID%3)
				hub.SendToUser(userID, ping())
				hub.SendToProject(userID%3, ping())
				hub.Broadcast(ping())
				if n%2 == 0 {
					hub.Disconnect(c)
				}
			}(uint64(u), i)
		}
	}
	wg.Wait()

	assert.Equal(t, users*perUser/2, hub.TotalConnections())
	for u := uint64(1); u <= users; u++ {
		assert.Equal(t, perUser/2, hub.ConnectionCount(u))
	}
	assert.Len(t, hub.ConnectedUsers(), users)
}
