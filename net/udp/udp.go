package udp

import (
	"errors"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"golang.org/x/sys/unix"
)

var (
	errTimestampNotFound = errors.New("failed to read timestamp from out of band data")
	errUnexpectedData    = errors.New("failed to read out of band data")
)

// SetDSCP marks all packets sent on conn with the given Differentiated
// Services Codepoint. Valid values are in range [0, 63].
func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	if dscp > 63 {
		panic("unexpected DSCP value")
	}
	tos := int(dscp) << 2
	if addr := conn.LocalAddr().(*net.UDPAddr); addr.IP.To4() == nil {
		return ipv6.NewConn(conn).SetTrafficClass(tos)
	}
	return ipv4.NewConn(conn).SetTOS(tos)
}

// Timestamp handling based on studying code from the following projects:
// - https://github.com/bsdphk/Ntimed, file udp.c
// - https://github.com/golang/go, package "golang.org/x/sys/unix"
// - https://github.com/facebook/time, package "github.com/facebook/time/ntp/protocol/ntp"

func TimestampLen() int {
	return unix.CmsgSpace(3 * 16)
}
