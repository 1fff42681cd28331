package ntp

import (
	"errors"
)

var (
	errUnexpectedRequest = errors.New("unexpected request structure")
)

// IsValidResponse reports whether a datagram of n bytes decoding to resp
// passes the response acceptance gate. The gate is deliberately minimal, a
// full sized packet in server mode is accepted and everything else is
// rejected, whatever else it may contain.
func IsValidResponse(resp *Packet, n int) bool {
	return n >= PacketLen && resp.Mode() == ModeServer
}

func ValidateRequest(req *Packet, srcPort uint16) error {
	li := req.LeapIndicator()
	if li != LeapIndicatorNoWarning && li != LeapIndicatorUnknown {
		return errUnexpectedRequest
	}
	vn := req.Version()
	if vn < VersionMin || VersionMax < vn {
		return errUnexpectedRequest
	}
	mode := req.Mode()
	if vn == 1 && mode != ModeReserved0 || vn != 1 && mode != ModeClient {
		return errUnexpectedRequest
	}
	return nil
}
