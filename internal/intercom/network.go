package intercom

import (
	"net"
)

// InterfaceReady reports whether some non-loopback interface is up and holds
// a unicast address. It is the default network readiness probe.
func InterfaceReady() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if ok && ipnet.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}
