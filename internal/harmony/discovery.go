package harmony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Discovery defaults.
const (
	DefaultDiscoveryPort = 61991
	DefaultPingInterval  = 5 * time.Second
	DefaultBroadcastAddr = "255.255.255.255:5224"

	discoveryService   = "_logitech-reverse-bonjour._tcp.local."
	announceReadWait   = 5 * time.Second
	maxAnnouncementLen = 64 << 10
)

// ErrDiscoveryRunning is returned by Start on a running Discovery.
var ErrDiscoveryRunning = errors.New("harmony: discovery already running")

type udpConn interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	Close() error
}

var listenUDP = func(network string, laddr *net.UDPAddr) (udpConn, error) {
	return net.ListenUDP(network, laddr)
}

// DiscoveryOptions configures NewDiscovery.
type DiscoveryOptions struct {
	// Port is the TCP port hubs connect back to. Zero picks a free port.
	Port int

	// PingInterval is the broadcast period. Zero means DefaultPingInterval.
	PingInterval time.Duration

	// OfflineTimeout is how long a hub may stay silent before OnOffline.
	// Zero means three ping intervals.
	OfflineTimeout time.Duration

	// BroadcastAddr is where pings are sent. Empty means DefaultBroadcastAddr.
	BroadcastAddr string

	Logger Logger
}

type seenHub struct {
	info     HubInfo
	lastSeen time.Time
}

// Discovery finds hubs with the Harmony reverse-bonjour handshake.
//
// A UDP broadcast announces a local TCP port; every hub that hears it
// connects back and writes a "key:value;..." record describing itself.
// OnOnline fires the first time a hub is seen, OnOffline once it has
// been silent for the offline timeout.
type Discovery struct {
	opts   DiscoveryOptions
	logger Logger

	hubs map[string]*seenHub
	mu   sync.Mutex

	onOnline  func(HubInfo)
	onOffline func(HubInfo)
	cbMu      sync.RWMutex

	listener net.Listener
	udp      udpConn
	cancel   context.CancelFunc
	group    *errgroup.Group
	runMu    sync.Mutex
}

// NewDiscovery creates a stopped Discovery.
func NewDiscovery(opts DiscoveryOptions) *Discovery {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.OfflineTimeout <= 0 {
		opts.OfflineTimeout = 3 * opts.PingInterval
	}
	if opts.BroadcastAddr == "" {
		opts.BroadcastAddr = DefaultBroadcastAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Discovery{
		opts:   opts,
		logger: logger,
		hubs:   make(map[string]*seenHub),
	}
}

// SetOnOnline sets the callback run when a hub is first seen.
func (d *Discovery) SetOnOnline(fn func(HubInfo)) {
	d.cbMu.Lock()
	d.onOnline = fn
	d.cbMu.Unlock()
}

// SetOnOffline sets the callback run when a hub times out.
func (d *Discovery) SetOnOffline(fn func(HubInfo)) {
	d.cbMu.Lock()
	d.onOffline = fn
	d.cbMu.Unlock()
}

// Start opens the callback listener and begins broadcasting.
// It returns once the sockets are open; work continues until Stop or ctx ends.
func (d *Discovery) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.group != nil {
		return ErrDiscoveryRunning
	}

	dst, err := net.ResolveUDPAddr("udp4", d.opts.BroadcastAddr)
	if err != nil {
		return fmt.Errorf("resolving broadcast address: %w", err)
	}

	ln, err := net.Listen("tcp4", ":"+strconv.Itoa(d.opts.Port))
	if err != nil {
		return fmt.Errorf("listening for hubs: %w", err)
	}

	udp, err := listenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		ln.Close()
		return fmt.Errorf("opening broadcast socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	d.listener = ln
	d.udp = udp
	d.cancel = cancel
	d.group = g

	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		return nil
	})
	g.Go(func() error { return d.acceptLoop(gctx, g) })
	g.Go(func() error { return d.pingLoop(gctx, dst) })
	g.Go(func() error { return d.sweepLoop(gctx) })

	return nil
}

// Stop ends discovery and waits for its goroutines. Safe to call more than once.
func (d *Discovery) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.group == nil {
		return
	}

	d.cancel()
	if err := d.group.Wait(); err != nil {
		d.logger.Warn("discovery stopped with error", "error", err)
	}
	d.udp.Close()
	d.group = nil
}

// Addr returns the callback listener address, or nil when stopped.
func (d *Discovery) Addr() net.Addr {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.group == nil {
		return nil
	}
	return d.listener.Addr()
}

// Hubs returns the hubs currently considered online, ordered by key.
func (d *Discovery) Hubs() []HubInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]HubInfo, 0, len(d.hubs))
	for _, h := range d.hubs {
		out = append(out, h.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Forget drops a hub without firing OnOffline, so its next announcement
// is reported as online again.
func (d *Discovery) Forget(key string) {
	d.mu.Lock()
	delete(d.hubs, key)
	d.mu.Unlock()
}

func (d *Discovery) acceptLoop(ctx context.Context, g *errgroup.Group) error {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.logger.Warn("discovery accept failed", "error", err)
			continue
		}
		g.Go(func() error {
			d.handleConn(conn)
			return nil
		})
	}
}

func (d *Discovery) handleConn(conn net.Conn) {
	defer conn.Close()

	//nolint:errcheck // read error is reported below
	conn.SetReadDeadline(time.Now().Add(announceReadWait))
	data, err := io.ReadAll(io.LimitReader(conn, maxAnnouncementLen))
	if err != nil && len(data) == 0 {
		d.logger.Debug("discovery read failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	info, err := ParseHubInfo(string(data))
	if err != nil {
		d.logger.Debug("ignoring hub announcement", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	d.observe(info)
}

// observe records an announcement and fires OnOnline for new hubs.
func (d *Discovery) observe(info HubInfo) {
	key := info.Key()

	d.mu.Lock()
	h, known := d.hubs[key]
	if known {
		h.info = info
		h.lastSeen = time.Now()
	} else {
		d.hubs[key] = &seenHub{info: info, lastSeen: time.Now()}
	}
	d.mu.Unlock()

	if known {
		return
	}

	d.logger.Debug("hub online", "hub", info.FriendlyName, "ip", info.IP)
	d.cbMu.RLock()
	fn := d.onOnline
	d.cbMu.RUnlock()
	if fn != nil {
		fn(info)
	}
}

func (d *Discovery) pingLoop(ctx context.Context, dst *net.UDPAddr) error {
	port := d.listener.Addr().(*net.TCPAddr).Port
	payload := []byte(discoveryService + "\n" + strconv.Itoa(port))

	ticker := time.NewTicker(d.opts.PingInterval)
	defer ticker.Stop()

	for {
		if _, err := d.udp.WriteToUDP(payload, dst); err != nil {
			d.logger.Warn("discovery broadcast failed", "addr", dst.String(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Discovery) sweepLoop(ctx context.Context) error {
	interval := d.opts.PingInterval
	if d.opts.OfflineTimeout < interval {
		interval = d.opts.OfflineTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.sweep(time.Now())
		}
	}
}

// sweep fires OnOffline for every hub silent since before now-OfflineTimeout.
func (d *Discovery) sweep(now time.Time) {
	var gone []HubInfo

	d.mu.Lock()
	for key, h := range d.hubs {
		if now.Sub(h.lastSeen) > d.opts.OfflineTimeout {
			gone = append(gone, h.info)
			delete(d.hubs, key)
		}
	}
	d.mu.Unlock()

	d.cbMu.RLock()
	fn := d.onOffline
	d.cbMu.RUnlock()

	for _, info := range gone {
		d.logger.Debug("hub offline", "hub", info.FriendlyName, "ip", info.IP)
		if fn != nil {
			fn(info)
		}
	}
}
