package peripheral

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/gasmon/gasmon"
)

// conn is the part of ble.Conn the radio relies on.
type conn interface {
	RemoteAddr() ble.Addr
	Disconnected() <-chan struct{}
	Close() error
}

// notifier is the part of ble.Notifier the radio relies on.
type notifier interface {
	Context() context.Context
	Write(b []byte) (int, error)
}

// Radio serves the gas sensing service on the default go-ble device.
// go-ble does not report connections to a peripheral, so a central becomes a
// peer on its first request to one of our characteristics.
type Radio struct {
	Log log.FieldLogger

	mu        sync.Mutex
	peer      *Peer
	notifiers map[gasmon.Characteristic]notifier
	conns     chan conn
}

func New(logger log.FieldLogger) *Radio {
	return &Radio{
		Log:       logger,
		notifiers: map[gasmon.Characteristic]notifier{},
		conns:     make(chan conn, 1),
	}
}

func (r *Radio) Serve(attrs gasmon.Attributes) error {
	svc := ble.NewService(ble.UUID16(gasmon.ServiceUUID))

	for _, ch := range gasmon.AllCharacteristics() {
		ch := ch
		c := svc.NewCharacteristic(ble.MustParse(ch.UUID()))

		c.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
			r.observe(req.Conn())
			_, _ = rsp.Write(attrs.Value(ch))
		}))
		if ch.Writable() {
			c.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
				r.observe(req.Conn())
				attrs.Write(ch, req.Data())
			}))
		}
		c.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
			r.observe(req.Conn())
			r.subscribe(ch, n)
			<-n.Context().Done()
			r.unsubscribe(ch, n)
		}))
	}

	return errors.Wrap(ble.AddService(svc), "failed to add service")
}

func (r *Radio) Advertise(ctx context.Context, adv gasmon.Advertisement) (gasmon.Peer, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.Log.Debugf("advertising %q every %s", adv.Name, adv.Interval)
	done := make(chan error, 1)
	go func() {
		done <- ble.AdvertiseNameAndServices(actx, adv.Name, ble.UUID16(adv.Service))
	}()

	select {
	case c := <-r.conns:
		cancel()
		<-done
		return r.accept(c), nil
	case err := <-done:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			err = errors.New("advertising stopped")
		}
		return nil, errors.Wrap(err, "failed to advertise")
	}
}

func (r *Radio) Notify(peer gasmon.Peer, ch gasmon.Characteristic, value []byte) error {
	r.mu.Lock()
	n, ok := r.notifiers[ch]
	current := r.peer
	r.mu.Unlock()

	if !ok || current == nil || gasmon.Peer(current) != peer {
		return gasmon.ErrNotSubscribed
	}
	if _, err := n.Write(value); err != nil {
		return errors.Wrapf(err, "failed to notify %s", ch)
	}
	return nil
}

// observe queues a central that is not the current peer.
func (r *Radio) observe(c conn) {
	r.mu.Lock()
	known := r.peer != nil
	r.mu.Unlock()
	if known {
		return
	}
	select {
	case r.conns <- c:
	default:
	}
}

func (r *Radio) accept(c conn) *Peer {
	p := &Peer{conn: c, radio: r}
	r.mu.Lock()
	r.peer = p
	r.mu.Unlock()
	return p
}

func (r *Radio) release(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peer != p {
		return
	}
	r.peer = nil
	r.notifiers = map[gasmon.Characteristic]notifier{}
	// a request racing the disconnect may have queued the old central
	select {
	case <-r.conns:
	default:
	}
}

func (r *Radio) subscribe(ch gasmon.Characteristic, n notifier) {
	r.mu.Lock()
	r.notifiers[ch] = n
	r.mu.Unlock()
	r.Log.Debugf("%s notifications enabled", ch)
}

func (r *Radio) unsubscribe(ch gasmon.Characteristic, n notifier) {
	r.mu.Lock()
	if r.notifiers[ch] == n {
		delete(r.notifiers, ch)
	}
	r.mu.Unlock()
	r.Log.Debugf("%s notifications disabled", ch)
}

// Peer is a central connected to the radio.
type Peer struct {
	conn  conn
	radio *Radio
	once  sync.Once
}

func (p *Peer) Address() string {
	return p.conn.RemoteAddr().String()
}

func (p *Peer) Disconnected() <-chan struct{} {
	return p.conn.Disconnected()
}

func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		p.radio.release(p)
		select {
		case <-p.conn.Disconnected():
		default:
			err = p.conn.Close()
		}
	})
	return err
}
