package client

import (
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/GregAskew/NTPQuery/base/timemath"
	"github.com/GregAskew/NTPQuery/net/ntp"
)

// Result is the outcome of a single query exchange. Valid reports whether
// the response passed the acceptance gate, a rejected response still
// carries the decoded header fields but no clock math.
type Result struct {
	Valid          bool
	LeapIndicator  uint8
	Version        uint8
	Mode           uint8
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      time.Duration
	RootDispersion time.Duration
	ReferenceID    ntp.ReferenceID
	ReferenceTime  time.Time
	ClientTxTime   time.Time
	ServerRxTime   time.Time
	ServerTxTime   time.Time
	ClientRxTime   time.Time
	ClockOffset    time.Duration
	RoundTripDelay time.Duration
	Packet         ntp.Packet
}

func (r *Result) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("Valid", r.Valid)
	enc.AddUint8("LeapIndicator", r.LeapIndicator)
	enc.AddUint8("Version", r.Version)
	enc.AddUint8("Mode", r.Mode)
	enc.AddUint8("Stratum", r.Stratum)
	enc.AddInt8("Poll", r.Poll)
	enc.AddInt8("Precision", r.Precision)
	enc.AddDuration("RootDelay", r.RootDelay)
	enc.AddDuration("RootDispersion", r.RootDispersion)
	enc.AddString("ReferenceID", r.ReferenceID.String())
	enc.AddTime("ReferenceTime", r.ReferenceTime)
	enc.AddDuration("ClockOffset", r.ClockOffset)
	enc.AddDuration("RoundTripDelay", r.RoundTripDelay)
	return nil
}

func leapName(l uint8) string {
	switch l {
	case ntp.LeapIndicatorNoWarning:
		return "no warning"
	case ntp.LeapIndicatorInsertSecond:
		return "last minute of the day has 61 seconds"
	case ntp.LeapIndicatorDeleteSecond:
		return "last minute of the day has 59 seconds"
	default:
		return "unknown (clock unsynchronized)"
	}
}

func modeName(m uint8) string {
	switch m {
	case ntp.ModeSymmetricActive:
		return "symmetric active"
	case ntp.ModeSymmetricPassive:
		return "symmetric passive"
	case ntp.ModeClient:
		return "client"
	case ntp.ModeServer:
		return "server"
	case ntp.ModeBroadcast:
		return "broadcast"
	case ntp.ModeControl:
		return "control message"
	default:
		return "reserved"
	}
}

func stratumName(s uint8) string {
	switch {
	case s == ntp.StratumPrimary:
		return "primary reference"
	case ntp.StratumSecondaryMin <= s && s <= ntp.StratumSecondaryMax:
		return "secondary reference"
	case s == ntp.StratumUnsynchronized:
		return "unsynchronized"
	default:
		return "unspecified"
	}
}

// WriteResult renders r the way interactive queries report it, one
// prefixed line per field.
func WriteResult(w io.Writer, host string, r *Result) {
	fmt.Fprintf(w, "[%s] Valid response: %t\n", host, r.Valid)
	fmt.Fprintf(w, "[%s] Leap indicator: %d (%s)\n", host, r.LeapIndicator, leapName(r.LeapIndicator))
	fmt.Fprintf(w, "[%s] Version: %d\n", host, r.Version)
	fmt.Fprintf(w, "[%s] Mode: %d (%s)\n", host, r.Mode, modeName(r.Mode))
	fmt.Fprintf(w, "[%s] Stratum: %d (%s)\n", host, r.Stratum, stratumName(r.Stratum))
	fmt.Fprintf(w, "[%s] Poll interval: %v\n", host, timemath.Duration(math.Ldexp(1, int(r.Poll))))
	fmt.Fprintf(w, "[%s] Precision: %v\n", host, timemath.Duration(math.Ldexp(1, int(r.Precision))))
	fmt.Fprintf(w, "[%s] Root delay: %v\n", host, r.RootDelay)
	fmt.Fprintf(w, "[%s] Root dispersion: %v\n", host, r.RootDispersion)
	fmt.Fprintf(w, "[%s] Reference ID: %#08x %s\n", host, r.Packet.ReferenceID, r.ReferenceID)
	fmt.Fprintf(w, "[%s] Reference time: %v\n", host, r.ReferenceTime)
	fmt.Fprintf(w, "[%s] Client TX time: %v\n", host, r.ClientTxTime)
	fmt.Fprintf(w, "[%s] Server RX time: %v\n", host, r.ServerRxTime)
	fmt.Fprintf(w, "[%s] Server TX time: %v\n", host, r.ServerTxTime)
	fmt.Fprintf(w, "[%s] Client RX time: %v\n", host, r.ClientRxTime)
	if !r.Valid {
		return
	}
	fmt.Fprintf(w, "[%s] Clock offset: %v\n", host, r.ClockOffset)
	fmt.Fprintf(w, "[%s] Round trip delay: %v\n", host, r.RoundTripDelay)
}
