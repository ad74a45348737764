// Package nettrace is a raw-socket ICMP echo primitive, a fallback for the
// ping Prober when the unprivileged (UDP-datagram) ICMP mode pro-bing uses
// by default isn't available (no CAP_NET_RAW, or a kernel that doesn't
// support the DGRAM ICMP socket type). It does not implement a full
// traceroute: only a single-hop echo, the one operation the ping Prober
// actually needs.
package nettrace

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// Echo sends one ICMP echo request to dst and waits up to timeout for a
// reply, returning the round-trip time.
func Echo(dst net.IP, timeout time.Duration) (time.Duration, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("open raw icmp socket: %w", err)
	}
	defer conn.Close()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(time.Now().UnixNano() & 0xffff),
			Seq:  1,
			Data: []byte("defcon-ping"),
		},
	}

	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal icmp echo: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(msgBytes, &net.IPAddr{IP: dst}); err != nil {
		return 0, fmt.Errorf("send icmp echo: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	reply := make([]byte, 1500)
	n, _, err := conn.ReadFrom(reply)
	if err != nil {
		return 0, fmt.Errorf("no reply from %s: %w", dst, err)
	}
	rtt := time.Since(start)

	rm, err := icmp.ParseMessage(1, reply[:n])
	if err != nil {
		return 0, fmt.Errorf("parse icmp reply: %w", err)
	}
	if rm.Type != ipv4.ICMPTypeEchoReply {
		return 0, fmt.Errorf("unexpected icmp reply type %v from %s", rm.Type, dst)
	}

	return rtt, nil
}
