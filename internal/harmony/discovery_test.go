package harmony

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeUDPConn struct {
	mu     sync.Mutex
	writes []string
	dsts   []string
}

func (c *fakeUDPConn) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(b))
	c.dsts = append(c.dsts, addr.String())
	return len(b), nil
}

func (c *fakeUDPConn) Close() error { return nil }

func (c *fakeUDPConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func useFakeUDP(t *testing.T) *fakeUDPConn {
	t.Helper()
	fake := &fakeUDPConn{}
	old := listenUDP
	listenUDP = func(string, *net.UDPAddr) (udpConn, error) { return fake, nil }
	t.Cleanup(func() { listenUDP = old })
	return fake
}

// announce connects to the discovery listener the way a hub does.
func announce(t *testing.T, addr net.Addr, record string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial discovery listener: %v", err)
	}
	if _, err := conn.Write([]byte(record)); err != nil {
		t.Fatalf("write announcement: %v", err)
	}
	conn.Close()
}

func waitFor(t *testing.T, ch <-chan HubInfo) HubInfo {
	t.Helper()
	select {
	case info := <-ch:
		return info
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for discovery callback")
		return HubInfo{}
	}
}

func TestDiscovery_BroadcastsPort(t *testing.T) {
	udp := useFakeUDP(t)

	d := NewDiscovery(DiscoveryOptions{PingInterval: 20 * time.Millisecond})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	port := d.Addr().(*net.TCPAddr).Port
	deadline := time.Now().Add(2 * time.Second)
	for len(udp.sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	sent := udp.sent()
	if len(sent) < 2 {
		t.Fatalf("sent %d pings, want at least 2", len(sent))
	}
	want := "_logitech-reverse-bonjour._tcp.local.\n" + strconv.Itoa(port)
	if sent[0] != want {
		t.Errorf("ping payload = %q, want %q", sent[0], want)
	}
	udp.mu.Lock()
	dst := udp.dsts[0]
	udp.mu.Unlock()
	if dst != DefaultBroadcastAddr {
		t.Errorf("ping destination = %q, want %q", dst, DefaultBroadcastAddr)
	}
}

func TestDiscovery_OnlineOnceThenOffline(t *testing.T) {
	useFakeUDP(t)

	online := make(chan HubInfo, 4)
	offline := make(chan HubInfo, 4)

	d := NewDiscovery(DiscoveryOptions{
		PingInterval:   50 * time.Millisecond,
		OfflineTimeout: 300 * time.Millisecond,
	})
	d.SetOnOnline(func(info HubInfo) { online <- info })
	d.SetOnOffline(func(info HubInfo) { offline <- info })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	record := "ip:192.168.1.20;friendlyName:Living Room;uuid:hub-1;remoteId:42"
	announce(t, d.Addr(), record)
	info := waitFor(t, online)
	if info.FriendlyName != "Living Room" || info.RemoteID != "42" {
		t.Errorf("unexpected hub info: %+v", info)
	}

	// A repeat announcement refreshes the hub without another online event.
	announce(t, d.Addr(), record)
	time.Sleep(50 * time.Millisecond)
	select {
	case dup := <-online:
		t.Fatalf("duplicate online event: %+v", dup)
	default:
	}
	if hubs := d.Hubs(); len(hubs) != 1 {
		t.Errorf("Hubs() len = %d, want 1", len(hubs))
	}

	gone := waitFor(t, offline)
	if gone.UUID != "hub-1" {
		t.Errorf("offline hub = %+v", gone)
	}
	if hubs := d.Hubs(); len(hubs) != 0 {
		t.Errorf("Hubs() after offline len = %d, want 0", len(hubs))
	}
}

func TestDiscovery_IgnoresMalformedAnnouncement(t *testing.T) {
	useFakeUDP(t)

	online := make(chan HubInfo, 1)
	d := NewDiscovery(DiscoveryOptions{PingInterval: time.Second})
	d.SetOnOnline(func(info HubInfo) { online <- info })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	announce(t, d.Addr(), "friendlyName:No Address")
	time.Sleep(100 * time.Millisecond)

	select {
	case info := <-online:
		t.Fatalf("unexpected online event: %+v", info)
	default:
	}
}

func TestDiscovery_Forget(t *testing.T) {
	useFakeUDP(t)

	online := make(chan HubInfo, 2)
	d := NewDiscovery(DiscoveryOptions{PingInterval: time.Second})
	d.SetOnOnline(func(info HubInfo) { online <- info })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	announce(t, d.Addr(), "ip:10.0.0.9;uuid:u")
	waitFor(t, online)

	d.Forget("u")
	announce(t, d.Addr(), "ip:10.0.0.9;uuid:u")
	waitFor(t, online)
}

func TestDiscovery_StartTwice(t *testing.T) {
	useFakeUDP(t)

	d := NewDiscovery(DiscoveryOptions{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err != ErrDiscoveryRunning {
		t.Errorf("second Start() error = %v, want ErrDiscoveryRunning", err)
	}
}

func TestDiscovery_StopIdempotent(t *testing.T) {
	useFakeUDP(t)

	d := NewDiscovery(DiscoveryOptions{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	d.Stop()
	d.Stop()

	if d.Addr() != nil {
		t.Error("Addr() after Stop should be nil")
	}
}

func TestDiscovery_SweepUsesOfflineTimeout(t *testing.T) {
	d := NewDiscovery(DiscoveryOptions{PingInterval: time.Second})
	var gone []string
	d.SetOnOffline(func(info HubInfo) { gone = append(gone, info.Key()) })

	now := time.Now()
	d.hubs["fresh"] = &seenHub{info: HubInfo{IP: "1", UUID: "fresh"}, lastSeen: now.Add(-time.Second)}
	d.hubs["stale"] = &seenHub{info: HubInfo{IP: "2", UUID: "stale"}, lastSeen: now.Add(-4 * time.Second)}

	d.sweep(now)

	if strings.Join(gone, ",") != "stale" {
		t.Errorf("offline hubs = %v, want [stale]", gone)
	}
}
