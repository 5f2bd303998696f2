package peripheral

import (
	"context"
	"sync"
	"testing"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/gasmon/gasmon"
)

type addr string

func (a addr) String() string { return string(a) }

type fakeConn struct {
	addr   addr
	gone   chan struct{}
	closed int
}

func newFakeConn(a string) *fakeConn {
	return &fakeConn{addr: addr(a), gone: make(chan struct{})}
}

func (c *fakeConn) RemoteAddr() ble.Addr          { return c.addr }
func (c *fakeConn) Disconnected() <-chan struct{} { return c.gone }

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

type fakeNotifier struct {
	ctx context.Context

	mu      sync.Mutex
	written [][]byte
}

func (n *fakeNotifier) Context() context.Context { return n.ctx }

func (n *fakeNotifier) Write(b []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.written = append(n.written, append([]byte(nil), b...))
	return len(b), nil
}

func newRadio() *Radio {
	logger, _ := test.NewNullLogger()
	return New(logger)
}

func TestObserveQueuesFirstCentral(t *testing.T) {
	r := newRadio()
	first, second := newFakeConn("aa"), newFakeConn("bb")

	r.observe(first)
	r.observe(second)
	require.Len(t, r.conns, 1)

	p := r.accept(<-r.conns)
	assert.Equal(t, "aa", p.Address())

	// requests from anyone while a peer is current are not queued
	r.observe(second)
	assert.Len(t, r.conns, 0)
}

func TestNotifyRequiresSubscription(t *testing.T) {
	r := newRadio()
	p := r.accept(newFakeConn("aa"))

	err := r.Notify(p, gasmon.CharCO, []byte{1, 0})
	assert.Equal(t, gasmon.ErrNotSubscribed, err)

	n := &fakeNotifier{ctx: context.Background()}
	r.subscribe(gasmon.CharCO, n)
	require.NoError(t, r.Notify(p, gasmon.CharCO, []byte{1, 0}))
	assert.Equal(t, [][]byte{{1, 0}}, n.written)

	r.unsubscribe(gasmon.CharCO, n)
	assert.Equal(t, gasmon.ErrNotSubscribed, r.Notify(p, gasmon.CharCO, []byte{2, 0}))
}

func TestNotifyRejectsStalePeer(t *testing.T) {
	r := newRadio()
	old := r.accept(newFakeConn("aa"))
	require.NoError(t, old.Close())

	current := r.accept(newFakeConn("bb"))
	r.subscribe(gasmon.CharBattery, &fakeNotifier{ctx: context.Background()})

	assert.Equal(t, gasmon.ErrNotSubscribed, r.Notify(old, gasmon.CharBattery, []byte{50, 0}))
	assert.NoError(t, r.Notify(current, gasmon.CharBattery, []byte{50, 0}))
}

func TestUnsubscribeKeepsNewerNotifier(t *testing.T) {
	r := newRadio()
	p := r.accept(newFakeConn("aa"))
	older := &fakeNotifier{ctx: context.Background()}
	newer := &fakeNotifier{ctx: context.Background()}

	r.subscribe(gasmon.CharCH4, older)
	r.subscribe(gasmon.CharCH4, newer)
	r.unsubscribe(gasmon.CharCH4, older)

	require.NoError(t, r.Notify(p, gasmon.CharCH4, []byte{7, 0}))
	assert.Len(t, newer.written, 1)
	assert.Empty(t, older.written)
}

func TestPeerCloseReleasesRadio(t *testing.T) {
	r := newRadio()
	c := newFakeConn("aa")
	p := r.accept(c)
	r.subscribe(gasmon.CharCO2, &fakeNotifier{ctx: context.Background()})
	// a request raced the disconnect
	r.conns <- c

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, c.closed)
	assert.Nil(t, r.peer)
	assert.Empty(t, r.notifiers)
	assert.Len(t, r.conns, 0)

	next := newFakeConn("bb")
	r.observe(next)
	assert.Len(t, r.conns, 1)
}

func TestPeerCloseAfterDisconnect(t *testing.T) {
	r := newRadio()
	c := newFakeConn("aa")
	p := r.accept(c)
	close(c.gone)

	select {
	case <-p.Disconnected():
	default:
		t.Fatal("peer should report the disconnect")
	}
	require.NoError(t, p.Close())
	assert.Equal(t, 0, c.closed)
	assert.Nil(t, r.peer)
}
