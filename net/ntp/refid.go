package ntp

import (
	"net/netip"
	"time"
)

// Stratum field tiers.
const (
	StratumUnspecified    = 0
	StratumPrimary        = 1
	StratumSecondaryMin   = 2
	StratumSecondaryMax   = 15
	StratumUnsynchronized = 16
)

type RefIDKind uint8

const (
	RefIDNone RefIDKind = iota
	RefIDTag
	RefIDIPv4
	RefIDTime
	RefIDNotApplicable
)

// ReferenceID is the interpreted form of the 4 byte reference identifier
// field. Exactly one of Tag, Addr/Name and Time is meaningful, selected
// by Kind. Name stays empty until a reverse lookup fills it in.
type ReferenceID struct {
	Kind RefIDKind
	Tag  string
	Addr netip.Addr
	Name string
	Time time.Time
}

// RefIDFromTag packs a short ASCII tag such as "LOCL" into a reference
// identifier. Tags longer than 4 bytes are truncated.
func RefIDFromTag(tag string) uint32 {
	var b [4]byte
	copy(b[:], tag)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DecodeReferenceID interprets refid according to the response's stratum
// and version number. Reserved stratum values above 16 fall back to the
// unspecified tier and render as a raw ASCII tag.
func DecodeReferenceID(stratum, version uint8, refid uint32) ReferenceID {
	switch {
	case StratumSecondaryMin <= stratum && stratum <= StratumSecondaryMax:
		switch version {
		case 3:
			b := [4]byte{byte(refid >> 24), byte(refid >> 16), byte(refid >> 8), byte(refid)}
			return ReferenceID{Kind: RefIDIPv4, Addr: netip.AddrFrom4(b)}
		case 4:
			return ReferenceID{Kind: RefIDTime, Time: TimeFromTime64(Time64{Seconds: refid})}
		default:
			return ReferenceID{Kind: RefIDNotApplicable}
		}
	case stratum == StratumUnsynchronized:
		return ReferenceID{Kind: RefIDNone}
	default:
		b := []byte{byte(refid >> 24), byte(refid >> 16), byte(refid >> 8), byte(refid)}
		return ReferenceID{Kind: RefIDTag, Tag: string(b)}
	}
}

func (r ReferenceID) String() string {
	switch r.Kind {
	case RefIDTag:
		return r.Tag
	case RefIDIPv4:
		if r.Name != "" {
			return r.Name + " (" + r.Addr.String() + ")"
		}
		return r.Addr.String()
	case RefIDTime:
		return r.Time.Format(time.DateTime)
	case RefIDNotApplicable:
		return "not applicable"
	default:
		return ""
	}
}
