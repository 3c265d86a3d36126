package tool

import (
	"fmt"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ProbeResult summarizes an ICMP reachability check.
type ProbeResult struct {
	Host       string
	Sent       int
	Received   int
	AvgRtt     time.Duration
	PacketLoss float64
}

// Probe pings the host of serverURL a few times (unprivileged UDP ping).
// It only informs the user; an unreachable host is not fatal because ICMP may be filtered.
func Probe(serverURL string, count int, timeout time.Duration) (ProbeResult, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse server URL: %v", err)
	}
	host := u.Hostname()
	if host == "" {
		return ProbeResult{}, fmt.Errorf("server URL %q has no host", serverURL)
	}
	if count <= 0 {
		count = 3
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return ProbeResult{Host: host}, fmt.Errorf("failed to create pinger for %s: %v", host, err)
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return ProbeResult{Host: host}, fmt.Errorf("ping %s failed: %v", host, err)
	}

	stats := pinger.Statistics()
	return ProbeResult{
		Host:       host,
		Sent:       stats.PacketsSent,
		Received:   stats.PacketsRecv,
		AvgRtt:     stats.AvgRtt,
		PacketLoss: stats.PacketLoss,
	}, nil
}
