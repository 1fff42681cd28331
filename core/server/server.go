package server

import (
	"time"

	"github.com/GregAskew/NTPQuery/core/timebase"

	"github.com/GregAskew/NTPQuery/net/ntp"
)

func mustTime64(t time.Time) ntp.Time64 {
	t64, err := ntp.Time64FromTime(t)
	if err != nil {
		panic(err)
	}
	return t64
}

// handleRequest fills in resp for a single request. The server keeps no
// state between requests, every response is served from the local clock
// alone. The response mirrors the version number of the request.
func handleRequest(req *ntp.Packet, rxt time.Time, resp *ntp.Packet, stratum uint8, refID uint32) {
	resp.SetVersion(req.Version())
	resp.SetMode(ntp.ModeServer)
	resp.Stratum = stratum
	resp.Poll = req.Poll
	resp.Precision = -32
	resp.RootDispersion = ntp.Time32{Seconds: 0, Fraction: 10}
	resp.ReferenceID = refID

	txt := timebase.Now()
	txt64 := mustTime64(txt)

	resp.ReferenceTime = txt64
	resp.ReceiveTime = mustTime64(rxt)
	resp.OriginTime = req.TransmitTime
	resp.TransmitTime = txt64
}
