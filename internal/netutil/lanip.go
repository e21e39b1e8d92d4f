// Package netutil holds small network helpers.
package netutil

import "net"

// DetectLANIP returns the primary LAN IPv4 address. The UDP dial never sends
// a packet; it only forces the kernel to pick the outbound interface.
// Falls back to the loopback address when no route exists.
func DetectLANIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
