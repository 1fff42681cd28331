package client

import (
	"errors"
)

var (
	// ErrTimeout is returned when no response arrives before the context
	// deadline expires.
	ErrTimeout = errors.New("timed out waiting for response")

	errWrite                  = errors.New("failed to write packet")
	errUnexpectedPacketFlags  = errors.New("failed to read packet: unexpected flags")
	errUnexpectedPacketSource = errors.New("failed to read packet: unexpected source")
	errUnexpectedPacket       = errors.New("failed to read packet: unexpected type or structure")
)
