package client_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GregAskew/NTPQuery/core/client"
	"github.com/GregAskew/NTPQuery/core/timebase"

	"github.com/GregAskew/NTPQuery/driver/clock"

	"github.com/GregAskew/NTPQuery/net/ntp"
)

func init() {
	lclk := &clock.SystemClock{Log: zap.NewNop()}
	timebase.RegisterClock(lclk)
}

type fakeResolver struct {
	names []string
	err   error
}

func (r fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	return r.names, r.err
}

// startFakeServer serves canned responses on a loopback socket. It echoes
// the request's transmit time into the origin field and stamps receive and
// transmit from the wall clock, like a regular server would.
func startFakeServer(t *testing.T, mode uint8, stratum uint8, refID uint32) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	go func() {
		buf := make([]byte, 2048)
		for {
			n, srcAddr, err := conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				return
			}
			var req ntp.Packet
			err = ntp.DecodePacket(&req, buf[:n])
			if err != nil {
				continue
			}
			now, err := ntp.Time64FromTime(time.Now().UTC())
			if err != nil {
				return
			}
			var resp ntp.Packet
			resp.SetVersion(req.Version())
			resp.SetMode(mode)
			resp.Stratum = stratum
			resp.Poll = req.Poll
			resp.Precision = -20
			resp.ReferenceID = refID
			resp.ReferenceTime = now
			resp.OriginTime = req.TransmitTime
			resp.ReceiveTime = now
			resp.TransmitTime = now
			out := make([]byte, ntp.PacketLen)
			ntp.EncodePacket(&out, &resp)
			_, _ = conn.WriteToUDPAddrPort(out, srcAddr)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestQueryIP(t *testing.T) {
	remoteAddr := startFakeServer(t, ntp.ModeServer, 2, 0xc0000201)
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ntpc := &client.IPClient{
		Resolver: fakeResolver{names: []string{"ntp1.example.org."}},
	}
	res, err := client.QueryIP(ctx, zap.NewNop(), ntpc, localAddr, remoteAddr)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatal("expected a valid response")
	}
	if res.Mode != ntp.ModeServer {
		t.Errorf("mode = %d, want %d", res.Mode, ntp.ModeServer)
	}
	if res.Stratum != 2 {
		t.Errorf("stratum = %d, want 2", res.Stratum)
	}
	if res.ReferenceID.Kind != ntp.RefIDIPv4 {
		t.Fatalf("reference ID kind = %d, want %d", res.ReferenceID.Kind, ntp.RefIDIPv4)
	}
	if got, want := res.ReferenceID.String(), "ntp1.example.org (192.0.2.1)"; got != want {
		t.Errorf("reference ID = %q, want %q", got, want)
	}
	if res.ClientRxTime.Before(res.ClientTxTime) {
		t.Errorf("client rx time must not predate client tx time")
	}
}

func TestQueryIPWithoutResolver(t *testing.T) {
	remoteAddr := startFakeServer(t, ntp.ModeServer, 3, 0x7f000001)
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ntpc := &client.IPClient{}
	res, err := client.QueryIP(ctx, zap.NewNop(), ntpc, localAddr, remoteAddr)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatal("expected a valid response")
	}
	if got, want := res.ReferenceID.String(), "127.0.0.1"; got != want {
		t.Errorf("reference ID = %q, want %q", got, want)
	}
}

func TestQueryIPRejectsNonServerMode(t *testing.T) {
	remoteAddr := startFakeServer(t, ntp.ModeBroadcast, 2, 0xc0000201)
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ntpc := &client.IPClient{}
	res, err := client.QueryIP(ctx, zap.NewNop(), ntpc, localAddr, remoteAddr)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("response in broadcast mode must not be accepted")
	}
	if res.Stratum != 2 {
		t.Errorf("stratum = %d, want 2", res.Stratum)
	}
	if res.ClockOffset != 0 || res.RoundTripDelay != 0 {
		t.Error("rejected response must not carry clock math")
	}
}

func TestQueryIPTimeout(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	remoteAddr := conn.LocalAddr().(*net.UDPAddr)
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ntpc := &client.IPClient{}
	_, err = client.QueryIP(ctx, zap.NewNop(), ntpc, localAddr, remoteAddr)
	if !errors.Is(err, client.ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}
