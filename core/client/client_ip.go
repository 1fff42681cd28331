package client

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"github.com/GregAskew/NTPQuery/base/metrics"

	"github.com/GregAskew/NTPQuery/core/timebase"

	"github.com/GregAskew/NTPQuery/net/ntp"
	"github.com/GregAskew/NTPQuery/net/udp"
)

const bufLen = 2048

type IPClient struct {
	DSCP     uint8
	Resolver ReverseResolver
	Histo    *hdrhistogram.Histogram
}

type ipClientMetrics struct {
	reqsSent      prometheus.Counter
	pktsReceived  prometheus.Counter
	respsAccepted prometheus.Counter
	respsRejected prometheus.Counter
}

func newIPClientMetrics() *ipClientMetrics {
	return &ipClientMetrics{
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientReqsSentN,
			Help: metrics.IPClientReqsSentH,
		}),
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientPktsReceivedN,
			Help: metrics.IPClientPktsReceivedH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientRespsAcceptedN,
			Help: metrics.IPClientRespsAcceptedH,
		}),
		respsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientRespsRejectedN,
			Help: metrics.IPClientRespsRejectedH,
		}),
	}
}

func compareAddrs(x, y netip.Addr) int {
	return x.Unmap().Compare(y.Unmap())
}

func (c *IPClient) queryIP(ctx context.Context, log *zap.Logger, mtrcs *ipClientMetrics,
	localAddr, remoteAddr *net.UDPAddr) (*Result, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: localAddr.IP})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	deadline, deadlineIsSet := ctx.Deadline()
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return nil, err
		}
	}
	err = udp.EnableRxTimestamps(conn)
	if err != nil {
		log.Error("failed to enable timestamping", zap.Error(err))
	}
	err = udp.SetDSCP(conn, c.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}

	ip4 := remoteAddr.IP.To4()
	if ip4 != nil {
		remoteAddr.IP = ip4
	}

	buf := make([]byte, bufLen)

	reference := remoteAddr.String()

	cTxTime := timebase.Now()
	ntpreq := ntp.NewRequest()
	ntpreq.TransmitTime, err = ntp.Time64FromTime(cTxTime)
	if err != nil {
		return nil, err
	}
	ntp.EncodePacket(&buf, &ntpreq)

	n, err := conn.WriteToUDPAddrPort(buf, remoteAddr.AddrPort())
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, errWrite
	}
	mtrcs.reqsSent.Inc()

	buf = buf[:cap(buf)]
	oob := make([]byte, udp.TimestampLen())
	n, oobn, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(buf, oob)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			err = ErrTimeout
		}
		return nil, err
	}
	if flags != 0 {
		return nil, errUnexpectedPacketFlags
	}
	oob = oob[:oobn]
	cRxTime, err := udp.TimestampFromOOBData(oob)
	if err != nil {
		cRxTime = timebase.Now()
		log.Debug("failed to read packet rx timestamp", zap.Error(err))
	}
	buf = buf[:n]
	mtrcs.pktsReceived.Inc()

	if compareAddrs(srcAddr.Addr(), remoteAddr.AddrPort().Addr()) != 0 {
		return nil, errUnexpectedPacketSource
	}

	var ntpresp ntp.Packet
	err = ntp.DecodePacket(&ntpresp, buf)
	if err != nil {
		return nil, err
	}

	if ntpresp.OriginTime != ntpreq.TransmitTime {
		return nil, errUnexpectedPacket
	}

	res := &Result{
		LeapIndicator:  ntpresp.LeapIndicator(),
		Version:        ntpresp.Version(),
		Mode:           ntpresp.Mode(),
		Stratum:        ntpresp.Stratum,
		Poll:           ntpresp.Poll,
		Precision:      ntpresp.Precision,
		RootDelay:      ntp.DurationFromTime32(ntpresp.RootDelay),
		RootDispersion: ntp.DurationFromTime32(ntpresp.RootDispersion),
		ReferenceID:    ntp.DecodeReferenceID(ntpresp.Stratum, ntpresp.Version(), ntpresp.ReferenceID),
		ReferenceTime:  ntp.TimeFromTime64(ntpresp.ReferenceTime),
		ClientTxTime:   cTxTime,
		ServerRxTime:   ntp.TimeFromTime64(ntpresp.ReceiveTime),
		ServerTxTime:   ntp.TimeFromTime64(ntpresp.TransmitTime),
		ClientRxTime:   cRxTime,
		Packet:         ntpresp,
	}

	if !ntp.IsValidResponse(&ntpresp, n) {
		mtrcs.respsRejected.Inc()
		log.Info("received invalid response",
			zap.Time("at", cRxTime),
			zap.String("from", reference),
			zap.Object("data", ntp.PacketMarshaler{Pkt: &ntpresp}),
		)
		return res, nil
	}
	mtrcs.respsAccepted.Inc()

	log.Debug("received response",
		zap.Time("at", cRxTime),
		zap.String("from", reference),
		zap.Object("data", ntp.PacketMarshaler{Pkt: &ntpresp}),
	)

	res.Valid = true
	res.ClockOffset = ntp.ClockOffset(cTxTime, res.ServerRxTime, res.ServerTxTime, cRxTime)
	res.RoundTripDelay = ntp.RoundTripDelay(cTxTime, res.ServerRxTime, res.ServerTxTime, cRxTime)

	log.Debug("evaluated response",
		zap.String("from", reference),
		zap.Duration("clock offset", res.ClockOffset),
		zap.Duration("round trip delay", res.RoundTripDelay),
	)

	if c.Histo != nil {
		c.Histo.RecordValue(res.RoundTripDelay.Microseconds())
	}

	if res.ReferenceID.Kind == ntp.RefIDIPv4 && c.Resolver != nil {
		names, err := c.Resolver.LookupAddr(ctx, res.ReferenceID.Addr.String())
		if err != nil {
			log.Info("failed to resolve reference identifier", zap.Error(err))
		} else if len(names) != 0 {
			res.ReferenceID.Name = strings.TrimSuffix(names[0], ".")
		}
	}

	return res, nil
}
