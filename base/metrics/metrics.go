package metrics

const (
	IPClientPktsReceivedH  = "The total number of packets received via IP"
	IPClientPktsReceivedN  = "ntpquery_ip_client_pkts_received"
	IPClientReqsSentH      = "The total number of requests sent via IP"
	IPClientReqsSentN      = "ntpquery_ip_client_reqs_sent"
	IPClientRespsAcceptedH = "The total number of responses accepted via IP"
	IPClientRespsAcceptedN = "ntpquery_ip_client_resps_accepted"
	IPClientRespsRejectedH = "The total number of responses rejected via IP"
	IPClientRespsRejectedN = "ntpquery_ip_client_resps_rejected"

	IPServerPktsReceivedH = "The total number of packets received via IP"
	IPServerPktsReceivedN = "ntpquery_ip_server_pkts_received"
	IPServerReqsAcceptedH = "The total number of requests accepted via IP"
	IPServerReqsAcceptedN = "ntpquery_ip_server_reqs_accepted"
	IPServerReqsServedH   = "The total number of requests served via IP"
	IPServerReqsServedN   = "ntpquery_ip_server_reqs_served"

	MonitorClockOffsetH    = "The clock offset measured in the most recent sample"
	MonitorClockOffsetN    = "ntpquery_monitor_clock_offset_seconds"
	MonitorRoundTripDelayH = "The round trip delay measured in the most recent sample"
	MonitorRoundTripDelayN = "ntpquery_monitor_round_trip_delay_seconds"
	MonitorSampleErrsH     = "The total number of samples that failed"
	MonitorSampleErrsN     = "ntpquery_monitor_sample_errs"
	MonitorSamplesH        = "The total number of samples collected"
	MonitorSamplesN        = "ntpquery_monitor_samples"
	MonitorStratumH        = "The stratum reported in the most recent sample"
	MonitorStratumN        = "ntpquery_monitor_stratum"
)
