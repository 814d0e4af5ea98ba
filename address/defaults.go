package address

import (
	"fmt"
	"net"
	"os"
)

func defaultEnv(name string) string {
	return os.Getenv(name)
}

// defaultLocalInterfaceAddr implements step (d) of spec §4.3: one of the
// host's network addresses, preferring a non-loopback IPv4 address.
func defaultLocalInterfaceAddr() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	var fallback string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
		if fallback == "" {
			fallback = ipnet.IP.String()
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no non-loopback interface address found")
}

// defaultLocalHost implements step (f) of spec §4.3: the final
// getLocalHost fallback.
func defaultLocalHost() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "127.0.0.1", nil
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return "127.0.0.1", nil
	}
	return addrs[0], nil
}
