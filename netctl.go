package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
)

// InsecureTransport returns a transport that does not verify server certificates.
func InsecureTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

var errNetworkDown = errors.New("network is down")

// NetCtl simulates network outages for transports created from it.
// While disabled, dials fail and established connections can neither read nor write.
type NetCtl struct {
	up        bool
	dialCount int
	onDial    []func(net.Conn)

	lock sync.RWMutex
}

// NewNetCtl returns a new NetCtl with the network up.
func NewNetCtl() *NetCtl {
	return &NetCtl{up: true}
}

// Enable brings the network up.
func (c *NetCtl) Enable() {
	c.setUp(true)
}

// Disable takes the network down.
func (c *NetCtl) Disable() {
	c.setUp(false)
}

// OnDial adds a callback that is called with every connection successfully dialed.
func (c *NetCtl) OnDial(f func(net.Conn)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onDial = append(c.onDial, f)
}

// DialCount returns the number of successful dials.
func (c *NetCtl) DialCount() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.dialCount
}

// NewRoundTripper returns an http.RoundTripper whose connections are controlled by c.
func (c *NetCtl) NewRoundTripper(tlsConfig *tls.Config) http.RoundTripper {
	netDialer := &net.Dialer{}
	tlsDialer := &tls.Dialer{Config: tlsConfig}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return c.dial(ctx, network, addr, netDialer)
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return c.dial(ctx, network, addr, tlsDialer)
		},
		TLSClientConfig: tlsConfig,
	}
}

func (c *NetCtl) setUp(up bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.up = up
}

func (c *NetCtl) isUp() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.up
}

type contextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

func (c *NetCtl) dial(ctx context.Context, network, addr string, dialer contextDialer) (net.Conn, error) {
	if !c.isUp() {
		return nil, errNetworkDown
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.dialCount++

	for _, f := range c.onDial {
		f(conn)
	}

	return &ctlConn{Conn: conn, ctl: c}, nil
}

// ctlConn fails reads and writes while its controller is disabled.
type ctlConn struct {
	net.Conn

	ctl *NetCtl
}

func (c *ctlConn) Read(b []byte) (int, error) {
	if !c.ctl.isUp() {
		return 0, errNetworkDown
	}

	return c.Conn.Read(b)
}

func (c *ctlConn) Write(b []byte) (int, error) {
	if !c.ctl.isUp() {
		return 0, errNetworkDown
	}

	return c.Conn.Write(b)
}
