package benchmark

import (
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/GregAskew/NTPQuery/core/timebase"

	"github.com/GregAskew/NTPQuery/net/ntp"
	"github.com/GregAskew/NTPQuery/net/udp"
)

func RunIPBenchmark(localAddr, remoteAddr *net.UDPAddr, numClientGoroutine, numRequestPerClient int) {
	var mu sync.Mutex
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numClientGoroutine)
	for i := numClientGoroutine; i > 0; i-- {
		go func() {
			hg := hdrhistogram.New(1, 50000, 5)

			conn, err := net.DialUDP("udp", localAddr, remoteAddr)
			if err != nil {
				log.Printf("Failed to dial UDP connection: %v", err)
				return
			}
			defer conn.Close()
			_ = udp.EnableRxTimestamps(conn)

			defer wg.Done()
			<-sg
			for j := numRequestPerClient; j > 0; j-- {
				buf := make([]byte, ntp.PacketLen)

				cTxTime := timebase.Now()
				ntpreq := ntp.NewRequest()
				ntpreq.TransmitTime, err = ntp.Time64FromTime(cTxTime)
				if err != nil {
					log.Printf("Failed to convert transmit time: %v", err)
					return
				}
				ntp.EncodePacket(&buf, &ntpreq)

				_, err = conn.Write(buf)
				if err != nil {
					log.Printf("Failed to write packet: %v", err)
					return
				}

				oob := make([]byte, udp.TimestampLen())

				n, oobn, flags, _, err := conn.ReadMsgUDPAddrPort(buf, oob)
				if err != nil {
					log.Printf("Failed to read packet: %v", err)
					return
				}
				if flags != 0 {
					log.Printf("Failed to read packet, flags: %v", flags)
					return
				}

				oob = oob[:oobn]
				cRxTime, err := udp.TimestampFromOOBData(oob)
				if err != nil {
					cRxTime = timebase.Now()
				}
				buf = buf[:n]

				var ntpresp ntp.Packet
				err = ntp.DecodePacket(&ntpresp, buf)
				if err != nil {
					log.Printf("Failed to decode packet payload: %v", err)
					return
				}

				if ntpresp.OriginTime != ntpreq.TransmitTime {
					log.Printf("Unrelated packet received")
					return
				}

				if !ntp.IsValidResponse(&ntpresp, n) {
					log.Printf("Invalid response received")
					return
				}

				sRxTime := ntp.TimeFromTime64(ntpresp.ReceiveTime)
				sTxTime := ntp.TimeFromTime64(ntpresp.TransmitTime)

				roundTripDelay := ntp.RoundTripDelay(cTxTime, sRxTime, sTxTime, cRxTime)

				err = hg.RecordValue(roundTripDelay.Microseconds())
				if err != nil {
					log.Printf("Failed to record histogram value: %v", err)
					return
				}
			}
			mu.Lock()
			defer mu.Unlock()
			hg.PercentilesPrint(os.Stdout, 1, 1.0)
		}()
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	log.Print(time.Since(t0))
}
