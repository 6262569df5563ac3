// Package sap implements the Session Announcement Protocol listener
// (RFC 2974) used to discover AES67 streams advertised on the network:
// it parses SAP headers, hands the embedded SDP body to the sdp package,
// and maintains a hash-keyed cache of live announcements.
package sap

import (
	"sync"
	"time"

	"github.com/aes67/audioengine/log"
	"github.com/aes67/audioengine/sdp"
	"github.com/aes67/audioengine/transport"
)

const (
	// DefaultAddress is the well-known SAP multicast group.
	DefaultAddress = "239.255.255.255"
	// DefaultPort is the well-known SAP port.
	DefaultPort = 9875

	// announcementTimeout is how long an announcement survives without a
	// refresh before the janitor expires it.
	announcementTimeout = 10 * time.Minute
	// cleanupInterval bounds how often the janitor sweep runs.
	cleanupInterval = 60 * time.Second

	maxPacketBytes = 65536
)

// Announcement is one cached SAP-advertised session.
type Announcement struct {
	MessageHash uint16
	Origin      string
	Descriptor  *sdp.Descriptor
	LastSeen    time.Time
}

// DiscoveryFunc is invoked when a new or refreshed announcement is parsed.
type DiscoveryFunc func(*sdp.Descriptor)

// DeletionFunc is invoked when an announcement is explicitly withdrawn or
// expires from inactivity.
type DeletionFunc func(messageHash uint16)

// Listener joins the SAP multicast group and maintains the announcement
// cache. One goroutine owns the socket; callbacks fire from that goroutine,
// so they must not block.
type Listener struct {
	address string
	port    int

	conn *transport.Receiver

	mu            sync.Mutex
	announcements map[uint16]Announcement
	lastCleanup   time.Time

	discovery DiscoveryFunc
	deletion  DeletionFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a listener bound to address:port but does not join the
// multicast group yet; call Start for that.
func New(address string, port int) *Listener {
	if address == "" {
		address = DefaultAddress
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Listener{
		address:       address,
		port:          port,
		announcements: make(map[uint16]Announcement),
		stopCh:        make(chan struct{}),
	}
}

// OnDiscovery registers the callback fired for each newly parsed or
// refreshed announcement.
func (l *Listener) OnDiscovery(fn DiscoveryFunc) { l.discovery = fn }

// OnDeletion registers the callback fired when an announcement is removed,
// whether by explicit withdrawal or by the inactivity janitor.
func (l *Listener) OnDeletion(fn DeletionFunc) { l.deletion = fn }

// Start joins the SAP multicast group and launches the listen loop.
func (l *Listener) Start() error {
	conn, err := transport.NewReceiver(l.address, l.port, 0)
	if err != nil {
		return err
	}
	l.conn = conn
	l.wg.Add(1)
	go l.listenLoop()
	return nil
}

// Stop terminates the listen loop and closes the socket. Idempotent.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	l.wg.Wait()
	if l.conn != nil {
		l.conn.Close()
	}
}

// Announcements returns a snapshot of the current cache.
func (l *Listener) Announcements() []Announcement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Announcement, 0, len(l.announcements))
	for _, a := range l.announcements {
		out = append(out, a)
	}
	return out
}

// Clear discards every cached announcement without firing deletion
// callbacks, for use when the listener is being reconfigured.
func (l *Listener) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.announcements = make(map[uint16]Announcement)
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()
	logger := log.Event("sap")
	buf := make([]byte, maxPacketBytes)
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}
		n, addr, err := l.conn.RecvFrom(buf)
		if err != nil {
			logger.Warn().Err(err).Msg("sap recv failed")
			continue
		}
		if n == 0 {
			l.maybeCleanup(time.Now())
			continue
		}
		origin := ""
		if addr != nil {
			origin = addr.IP.String()
		}
		l.processPacket(buf[:n], origin)
		l.maybeCleanup(time.Now())
	}
}

// processPacket parses one SAP datagram, following RFC 2974 §3: a 4-byte
// fixed header, an originating-source address, optional authentication
// data, an optional null-terminated MIME payload type, then the payload
// itself (an SDP session description for AES67 announcements).
func (l *Listener) processPacket(data []byte, origin string) {
	isDelete, hash, sdpOffset, ok := parseHeader(data)
	if !ok || sdpOffset >= len(data) {
		return
	}
	sdpText := string(data[sdpOffset:])

	if isDelete {
		l.remove(hash, true)
		return
	}

	desc, err := sdp.Parse(sdpText)
	if err != nil {
		return
	}

	l.mu.Lock()
	l.announcements[hash] = Announcement{
		MessageHash: hash,
		Origin:      origin,
		Descriptor:  desc,
		LastSeen:    time.Now(),
	}
	l.mu.Unlock()

	if l.discovery != nil {
		l.discovery(desc)
	}
}

func (l *Listener) remove(hash uint16, notify bool) {
	l.mu.Lock()
	_, existed := l.announcements[hash]
	delete(l.announcements, hash)
	l.mu.Unlock()
	if existed && notify && l.deletion != nil {
		l.deletion(hash)
	}
}

func (l *Listener) maybeCleanup(now time.Time) {
	l.mu.Lock()
	if now.Sub(l.lastCleanup) < cleanupInterval {
		l.mu.Unlock()
		return
	}
	l.lastCleanup = now
	var expired []uint16
	for hash, a := range l.announcements {
		if now.Sub(a.LastSeen) > announcementTimeout {
			expired = append(expired, hash)
			delete(l.announcements, hash)
		}
	}
	l.mu.Unlock()

	for _, hash := range expired {
		if l.deletion != nil {
			l.deletion(hash)
		}
	}
}

// parseHeader decodes the fixed SAP header (RFC 2974 §3). It accepts only
// version 1, unencrypted, uncompressed announcements; the originating
// source field is skipped as 4 bytes (IPv4) or 16 bytes (IPv6) according
// to the address-type bit.
func parseHeader(data []byte) (isDelete bool, messageHash uint16, sdpOffset int, ok bool) {
	if len(data) < 4 {
		return false, 0, 0, false
	}

	byte0 := data[0]
	version := (byte0 >> 5) & 0x07
	addressTypeV6 := byte0&0x10 != 0
	isDelete = byte0&0x04 != 0
	encrypted := byte0&0x02 != 0
	compressed := byte0&0x01 != 0

	if version != 1 || encrypted || compressed {
		return false, 0, 0, false
	}

	authLen := int(data[1])
	messageHash = uint16(data[2])<<8 | uint16(data[3])

	offset := 4
	if addressTypeV6 {
		offset += 16
	} else {
		offset += 4
	}
	offset += authLen * 4

	if offset >= len(data) {
		return false, 0, 0, false
	}

	// Skip the optional null-terminated MIME payload type (typically
	// "application/sdp"). A payload that starts directly with "v=0" has no
	// such field.
	if !(len(data)-offset >= 3 && string(data[offset:offset+3]) == "v=0") {
		for offset < len(data) && data[offset] != 0 {
			offset++
		}
		offset++
	}

	return isDelete, messageHash, offset, true
}
