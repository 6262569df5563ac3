// Package transport implements the multicast UDP socket layer: a receiver
// that joins a multicast group and polls for datagrams, and a transmitter
// that sends datagrams to a multicast destination with a configured TTL.
// Neither type touches RTP framing; they move raw bytes only.
package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// DefaultRecvBufferBytes is the suggested OS receive buffer size.
	DefaultRecvBufferBytes = 4 << 20 // 4 MiB
	// DefaultTTL is the default multicast TTL used by transmitters.
	DefaultTTL = 32
	// pollTimeout bounds each blocking read so Close can unblock recv
	// promptly without the platform requiring a signal-based interrupt.
	pollTimeout = 200 * time.Millisecond
)

// Receiver is a multicast UDP socket open for reading. Construct one per
// RX pipeline; it is not safe for concurrent Recv calls from multiple
// goroutines (the engine assigns exactly one consumer per receiver).
type Receiver struct {
	conn *net.UDPConn
}

// NewReceiver creates a UDP socket, binds to the wildcard address on port,
// and joins groupAddr on the default interface. recvBufferBytes <= 0 uses
// DefaultRecvBufferBytes.
func NewReceiver(groupAddr string, port int, recvBufferBytes int) (*Receiver, error) {
	group := net.ParseIP(groupAddr)
	if group == nil {
		return nil, fmt.Errorf("transport: invalid multicast address %q", groupAddr)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: join multicast %s:%d: %w", groupAddr, port, err)
	}
	if recvBufferBytes <= 0 {
		recvBufferBytes = DefaultRecvBufferBytes
	}
	_ = conn.SetReadBuffer(recvBufferBytes)
	return &Receiver{conn: conn}, nil
}

// Recv reads one datagram into buf, returning the number of bytes read. It
// uses a bounded read deadline internally so Close (called from another
// goroutine) reliably unblocks a pending Recv within pollTimeout; a timeout
// is reported as (0, nil), matching the "no packet yet" contract — callers
// distinguish a real transport error by checking the returned error for
// anything other than a timeout.
func (r *Receiver) Recv(buf []byte) (int, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, err := r.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// RecvFrom behaves like Recv but also reports the sender's address, for
// callers that need to attribute a datagram to its origin (SAP announcement
// bookkeeping).
func (r *Receiver) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, addr, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// Close is idempotent and drops the joined multicast group.
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Transmitter is a multicast UDP socket open for writing.
type Transmitter struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

// NewTransmitter creates a UDP socket for sending to groupAddr:port with
// the given TTL (<=0 uses DefaultTTL) and optional sendBufferBytes (<=0
// leaves the OS default). iface, if non-empty, pins outgoing multicast
// traffic to the named network interface.
func NewTransmitter(groupAddr string, port int, ttl int, sendBufferBytes int, iface string) (*Transmitter, error) {
	group := net.ParseIP(groupAddr)
	if group == nil {
		return nil, fmt.Errorf("transport: invalid multicast address %q", groupAddr)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("transport: open send socket: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := pc.SetMulticastTTL(ttl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: set multicast ttl: %w", err)
	}
	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: lookup interface %q: %w", iface, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: set multicast interface %q: %w", iface, err)
		}
	}
	if sendBufferBytes > 0 {
		_ = conn.SetWriteBuffer(sendBufferBytes)
	}

	return &Transmitter{
		conn: conn,
		dst:  &net.UDPAddr{IP: group, Port: port},
	}, nil
}

// Send writes one datagram made of payload to the configured destination.
func (t *Transmitter) Send(payload []byte) (int, error) {
	return t.conn.WriteToUDP(payload, t.dst)
}

// Close is idempotent.
func (t *Transmitter) Close() error {
	return t.conn.Close()
}
