// NTP query tool

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mmcloughlin/profile"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GregAskew/NTPQuery/benchmark"

	"github.com/GregAskew/NTPQuery/base/metrics"
	"github.com/GregAskew/NTPQuery/base/timemath"

	"github.com/GregAskew/NTPQuery/core/client"
	"github.com/GregAskew/NTPQuery/core/config"
	"github.com/GregAskew/NTPQuery/core/server"
	"github.com/GregAskew/NTPQuery/core/timebase"

	"github.com/GregAskew/NTPQuery/driver/clock"

	"github.com/GregAskew/NTPQuery/net/ntp"
)

const (
	defaultStratum     = 1
	defaultReferenceID = "LOCL"

	benchmarkNumClientGoroutine  = 8
	benchmarkNumRequestPerClient = 10_000
)

type svcConfig struct {
	LocalAddr          string  `toml:"local_address,omitempty"`
	RemoteAddr         string  `toml:"remote_address,omitempty"`
	MetricsAddr        string  `toml:"metrics_address,omitempty"`
	DSCP               uint8   `toml:"dscp,omitempty"`
	TimeoutSeconds     float64 `toml:"timeout_seconds,omitempty"`
	IntervalSeconds    float64 `toml:"interval_seconds,omitempty"`
	OffsetAlarmSeconds float64 `toml:"offset_alarm_seconds,omitempty"`
	Numeric            bool    `toml:"numeric,omitempty"`
	Stratum            uint8   `toml:"stratum,omitempty"`
	ReferenceID        string  `toml:"reference_id,omitempty"`
	ClientGoroutines   int     `toml:"client_goroutines,omitempty"`
	RequestsPerClient  int     `toml:"requests_per_client,omitempty"`
}

type monitorMetrics struct {
	samples        prometheus.Counter
	sampleErrs     prometheus.Counter
	clockOffset    prometheus.Gauge
	roundTripDelay prometheus.Gauge
	stratum        prometheus.Gauge
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func runMonitor(log *zap.Logger, addr string) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func newMonitorMetrics() *monitorMetrics {
	return &monitorMetrics{
		samples: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.MonitorSamplesN,
			Help: metrics.MonitorSamplesH,
		}),
		sampleErrs: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.MonitorSampleErrsN,
			Help: metrics.MonitorSampleErrsH,
		}),
		clockOffset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.MonitorClockOffsetN,
			Help: metrics.MonitorClockOffsetH,
		}),
		roundTripDelay: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.MonitorRoundTripDelayN,
			Help: metrics.MonitorRoundTripDelayH,
		}),
		stratum: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.MonitorStratumN,
			Help: metrics.MonitorStratumH,
		}),
	}
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

// resolveUDPAddr resolves s, defaulting the NTP service port when s does
// not carry one.
func resolveUDPAddr(s string) (*net.UDPAddr, error) {
	_, _, err := net.SplitHostPort(s)
	if err != nil {
		s = net.JoinHostPort(s, strconv.Itoa(ntp.ServerPort))
	}
	return net.ResolveUDPAddr("udp", s)
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		return &net.UDPAddr{}
	}
	localAddr, err := resolveUDPAddr(cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to resolve local address",
			zap.String("address", cfg.LocalAddr), zap.Error(err))
	}
	return localAddr
}

func remoteAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.RemoteAddr == "" {
		log.Fatal("remote_address not specified in config")
	}
	remoteAddr, err := resolveUDPAddr(cfg.RemoteAddr)
	if err != nil {
		log.Fatal("failed to resolve remote address",
			zap.String("address", cfg.RemoteAddr), zap.Error(err))
	}
	return remoteAddr
}

func listenAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		log.Fatal("local_address not specified in config")
	}
	localAddr, err := resolveUDPAddr(cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to resolve local address",
			zap.String("address", cfg.LocalAddr), zap.Error(err))
	}
	return localAddr
}

func queryTimeout(cfg svcConfig) time.Duration {
	if cfg.TimeoutSeconds == 0 {
		return config.DefaultTimeout
	}
	if cfg.TimeoutSeconds < 0 {
		log.Fatal("invalid timeout_seconds in config",
			zap.Float64("timeout_seconds", cfg.TimeoutSeconds))
	}
	return timemath.Duration(cfg.TimeoutSeconds)
}

func sampleInterval(cfg svcConfig) time.Duration {
	if cfg.IntervalSeconds == 0 {
		return config.DefaultInterval
	}
	if cfg.IntervalSeconds < 0 {
		log.Fatal("invalid interval_seconds in config",
			zap.Float64("interval_seconds", cfg.IntervalSeconds))
	}
	return timemath.Duration(cfg.IntervalSeconds)
}

func offsetAlarm(cfg svcConfig) time.Duration {
	if cfg.OffsetAlarmSeconds == 0 {
		return config.DefaultOffsetAlarm
	}
	if cfg.OffsetAlarmSeconds < 0 {
		log.Fatal("invalid offset_alarm_seconds in config",
			zap.Float64("offset_alarm_seconds", cfg.OffsetAlarmSeconds))
	}
	return timemath.Duration(cfg.OffsetAlarmSeconds)
}

func metricsAddress(cfg svcConfig) string {
	if cfg.MetricsAddr == "" {
		return config.DefaultMetricsAddr
	}
	return cfg.MetricsAddr
}

func dscpValue(cfg svcConfig) uint8 {
	if cfg.DSCP > config.DSCPMax {
		log.Fatal("invalid dscp in config", zap.Uint8("dscp", cfg.DSCP))
	}
	return cfg.DSCP
}

func responderStratum(cfg svcConfig) uint8 {
	if cfg.Stratum == 0 {
		return defaultStratum
	}
	if cfg.Stratum > ntp.StratumSecondaryMax {
		log.Fatal("invalid stratum in config", zap.Uint8("stratum", cfg.Stratum))
	}
	return cfg.Stratum
}

func referenceID(cfg svcConfig) uint32 {
	tag := cfg.ReferenceID
	if tag == "" {
		tag = defaultReferenceID
	}
	if len(tag) > 4 {
		log.Fatal("invalid reference_id in config",
			zap.String("reference_id", tag))
	}
	return ntp.RefIDFromTag(tag)
}

func runQuery(localAddrStr, remoteAddrStr string,
	timeout time.Duration, dscp uint8, numeric bool) {
	ctx := context.Background()

	localAddr := &net.UDPAddr{}
	if localAddrStr != "" {
		var err error
		localAddr, err = resolveUDPAddr(localAddrStr)
		if err != nil {
			log.Fatal("failed to resolve local address",
				zap.String("address", localAddrStr), zap.Error(err))
		}
	}
	remoteAddr, err := resolveUDPAddr(remoteAddrStr)
	if err != nil {
		log.Fatal("failed to resolve remote address",
			zap.String("address", remoteAddrStr), zap.Error(err))
	}

	lclk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	c := &client.IPClient{
		DSCP: dscp,
	}
	if !numeric {
		c.Resolver = net.DefaultResolver
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := client.QueryIP(ctx, log, c, localAddr, remoteAddr)
	if err != nil {
		log.Fatal("failed to query server",
			zap.Stringer("remote", remoteAddr), zap.Error(err))
	}

	client.WriteResult(os.Stdout, remoteAddrStr, res)
	if !res.Valid {
		os.Exit(1)
	}
}

func runMonitorLoop(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)
	remoteAddr := remoteAddress(cfg)
	timeout := queryTimeout(cfg)
	interval := sampleInterval(cfg)
	alarm := offsetAlarm(cfg)
	dscp := dscpValue(cfg)

	lclk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	go runMonitor(log, metricsAddress(cfg))

	mtrcs := newMonitorMetrics()

	c := &client.IPClient{
		DSCP: dscp,
	}
	if !cfg.Numeric {
		c.Resolver = net.DefaultResolver
	}

	for {
		qctx, cancel := context.WithTimeout(ctx, timeout)
		res, err := client.QueryIP(qctx, log, c, localAddr, remoteAddr)
		cancel()
		mtrcs.samples.Inc()
		if err != nil {
			mtrcs.sampleErrs.Inc()
			log.Error("failed to query server",
				zap.Stringer("remote", remoteAddr), zap.Error(err))
		} else if !res.Valid {
			mtrcs.sampleErrs.Inc()
			log.Info("rejected sample",
				zap.Stringer("remote", remoteAddr),
				zap.Object("result", res),
			)
		} else {
			mtrcs.clockOffset.Set(timemath.Seconds(res.ClockOffset))
			mtrcs.roundTripDelay.Set(timemath.Seconds(res.RoundTripDelay))
			mtrcs.stratum.Set(float64(res.Stratum))
			log.Info("collected sample",
				zap.Stringer("remote", remoteAddr),
				zap.Duration("clock offset", res.ClockOffset),
				zap.Duration("round trip delay", res.RoundTripDelay),
				zap.Uint8("stratum", res.Stratum),
			)
			if timemath.Abs(res.ClockOffset) > alarm {
				log.Warn("clock offset above alarm threshold",
					zap.Duration("clock offset", res.ClockOffset),
					zap.Duration("threshold", alarm),
				)
			}
		}
		lclk.Sleep(interval)
	}
}

func runResponder(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	localAddr := listenAddress(cfg)
	dscp := dscpValue(cfg)
	stratum := responderStratum(cfg)
	refID := referenceID(cfg)

	lclk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	if localAddr.Port == 0 {
		localAddr.Port = ntp.ServerPort
	}

	server.StartIPServer(ctx, log, localAddr, dscp, stratum, refID)

	runMonitor(log, metricsAddress(cfg))
}

func runBenchmark(configFile string) {
	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)
	remoteAddr := remoteAddress(cfg)

	numClientGoroutine := cfg.ClientGoroutines
	if numClientGoroutine == 0 {
		numClientGoroutine = benchmarkNumClientGoroutine
	}
	numRequestPerClient := cfg.RequestsPerClient
	if numRequestPerClient == 0 {
		numRequestPerClient = benchmarkNumRequestPerClient
	}

	lclk := &clock.SystemClock{Log: zap.NewNop()}
	timebase.RegisterClock(lclk)
	benchmark.RunIPBenchmark(localAddr, remoteAddr, numClientGoroutine, numRequestPerClient)
}

func exitWithUsage() {
	fmt.Println("usage: ntpquery <command> [arguments]")
	fmt.Println("commands: query, monitor, respond, benchmark")
	os.Exit(1)
}

func main() {
	var (
		verbose       bool
		configFile    string
		localAddrStr  string
		remoteAddrStr string
		timeout       time.Duration
		dscp          uint
		numeric       bool
	)

	queryFlags := flag.NewFlagSet("query", flag.ExitOnError)
	monitorFlags := flag.NewFlagSet("monitor", flag.ExitOnError)
	respondFlags := flag.NewFlagSet("respond", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	queryFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	queryFlags.StringVar(&localAddrStr, "local", "", "Local address")
	queryFlags.StringVar(&remoteAddrStr, "remote", "", "Remote address")
	queryFlags.DurationVar(&timeout, "timeout", config.DefaultTimeout, "Query timeout")
	queryFlags.UintVar(&dscp, "dscp", 0, "DSCP value for outgoing packets")
	queryFlags.BoolVar(&numeric, "numeric", false, "Skip reverse DNS resolution")

	monitorFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	monitorFlags.StringVar(&configFile, "config", "", "Config file")

	respondFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	respondFlags.StringVar(&configFile, "config", "", "Config file")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")

	prof := profile.New(profile.CPUProfile, profile.MemProfile)
	prof.SetFlags(benchmarkFlags)

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case queryFlags.Name():
		err := queryFlags.Parse(os.Args[2:])
		if err != nil || queryFlags.NArg() != 0 {
			exitWithUsage()
		}
		if remoteAddrStr == "" {
			exitWithUsage()
		}
		if timeout <= 0 {
			exitWithUsage()
		}
		if dscp > config.DSCPMax {
			exitWithUsage()
		}
		initLogger(verbose)
		runQuery(localAddrStr, remoteAddrStr, timeout, uint8(dscp), numeric)
	case monitorFlags.Name():
		err := monitorFlags.Parse(os.Args[2:])
		if err != nil || monitorFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runMonitorLoop(configFile)
	case respondFlags.Name():
		err := respondFlags.Parse(os.Args[2:])
		if err != nil || respondFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runResponder(configFile)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		defer prof.Start().Stop()
		runBenchmark(configFile)
	default:
		exitWithUsage()
	}
}
