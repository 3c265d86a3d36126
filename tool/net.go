package tool

import (
	"net"
	"sort"
)

// GetLocalIPv4Set returns the non-loopback IPv4 addresses of this host.
func GetLocalIPv4Set() map[string]struct{} {
	result := make(map[string]struct{})

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return result
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if ipv4 := ip.To4(); ipv4 != nil {
			result[ipv4.String()] = struct{}{}
		}
	}

	return result
}

// PreferredLocalIPv4 picks a stable LAN address for links shown to the user, or 127.0.0.1.
func PreferredLocalIPv4() string {
	set := GetLocalIPv4Set()
	if len(set) == 0 {
		return "127.0.0.1"
	}
	ips := make([]string, 0, len(set))
	for ip := range set {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips[0]
}
