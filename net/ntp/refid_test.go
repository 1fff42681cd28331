package ntp_test

import (
	"testing"

	"github.com/GregAskew/NTPQuery/net/ntp"
)

func TestDecodeReferenceID(t *testing.T) {
	tests := []struct {
		name     string
		stratum  uint8
		version  uint8
		refid    uint32
		wantKind ntp.RefIDKind
		want     string
	}{
		{
			name:     "Secondary stratum, version 3",
			stratum:  2,
			version:  3,
			refid:    0xc0000201,
			wantKind: ntp.RefIDIPv4,
			want:     "192.0.2.1",
		},
		{
			name:     "Secondary stratum upper bound, version 3",
			stratum:  15,
			version:  3,
			refid:    0x7f000001,
			wantKind: ntp.RefIDIPv4,
			want:     "127.0.0.1",
		},
		{
			name:     "Secondary stratum, version 4",
			stratum:  3,
			version:  4,
			refid:    3913056000,
			wantKind: ntp.RefIDTime,
			want:     "2024-01-01 00:00:00",
		},
		{
			name:     "Secondary stratum, version 2",
			stratum:  5,
			version:  2,
			refid:    0xc0000201,
			wantKind: ntp.RefIDNotApplicable,
			want:     "not applicable",
		},
		{
			name:     "Secondary stratum, version 1",
			stratum:  2,
			version:  1,
			refid:    0xc0000201,
			wantKind: ntp.RefIDNotApplicable,
			want:     "not applicable",
		},
		{
			name:     "Primary stratum",
			stratum:  1,
			version:  4,
			refid:    0x4c4f434c,
			wantKind: ntp.RefIDTag,
			want:     "LOCL",
		},
		{
			name:     "Unspecified stratum kiss code",
			stratum:  0,
			version:  4,
			refid:    0x52415445,
			wantKind: ntp.RefIDTag,
			want:     "RATE",
		},
		{
			name:     "Unsynchronized stratum",
			stratum:  16,
			version:  3,
			refid:    0xc0000201,
			wantKind: ntp.RefIDNone,
			want:     "",
		},
		{
			name:     "Reserved stratum",
			stratum:  17,
			version:  3,
			refid:    0x47505300,
			wantKind: ntp.RefIDTag,
			want:     "GPS\x00",
		},
		{
			name:     "Reserved stratum upper range",
			stratum:  200,
			version:  4,
			refid:    0x50505300,
			wantKind: ntp.RefIDTag,
			want:     "PPS\x00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ntp.DecodeReferenceID(tt.stratum, tt.version, tt.refid)
			if r.Kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", r.Kind, tt.wantKind)
			}
			if got := r.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRefIDFromTag(t *testing.T) {
	tests := []struct {
		tag  string
		want uint32
	}{
		{"LOCL", 0x4c4f434c},
		{"GPS", 0x47505300},
		{"", 0},
		{"CESIUM", 0x43455349},
	}
	for _, tt := range tests {
		got := ntp.RefIDFromTag(tt.tag)
		if got != tt.want {
			t.Errorf("RefIDFromTag(%q) = %#08x, want %#08x", tt.tag, got, tt.want)
		}
	}
}

func TestReferenceIDResolvedName(t *testing.T) {
	r := ntp.DecodeReferenceID(2, 3, 0xc0000201)
	r.Name = "hostname"
	if got, want := r.String(), "hostname (192.0.2.1)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
