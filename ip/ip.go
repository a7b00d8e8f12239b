package ip

import (
	"math/big"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// MaxExpanded caps how many addresses one range or CIDR entry may produce.
const MaxExpanded = 1 << 12

// IsRange reports whether entry looks like "start-end" with two IP addresses.
func IsRange(entry string) bool {
	start, end, ok := strings.Cut(entry, "-")
	return ok && net.ParseIP(strings.TrimSpace(start)) != nil && net.ParseIP(strings.TrimSpace(end)) != nil
}

// IsCIDR reports whether entry is an address with a prefix length.
func IsCIDR(entry string) bool {
	_, _, err := net.ParseCIDR(entry)
	return err == nil
}

// ExpandHost turns one hosts-file entry into host addresses. IP ranges
// ("10.0.0.10-10.0.0.12") and CIDR blocks expand to their addresses;
// anything else, hostnames and "host:port" included, is returned unchanged.
func ExpandHost(entry string) ([]string, error) {
	entry = strings.TrimSpace(entry)
	switch {
	case entry == "":
		return []string{}, nil
	case IsRange(entry):
		start, end, _ := strings.Cut(entry, "-")
		return RangeIPs(strings.TrimSpace(start), strings.TrimSpace(end))
	case IsCIDR(entry):
		return UsableIPs(entry)
	default:
		return []string{entry}, nil
	}
}

// RangeIPs lists every address from start to end inclusive.
func RangeIPs(start, end string) ([]string, error) {
	startIP, endIP := net.ParseIP(start), net.ParseIP(end)
	if startIP == nil {
		return nil, errors.Errorf("invalid start IP address: '%s'", start)
	}
	if endIP == nil {
		return nil, errors.Errorf("invalid end IP address: '%s'", end)
	}
	v4 := startIP.To4() != nil
	if v4 != (endIP.To4() != nil) {
		return nil, errors.New("start and end IP addresses must be of the same family")
	}

	lo, hi := toInt(startIP), toInt(endIP)
	if lo.Cmp(hi) > 0 {
		return nil, errors.Errorf("range %s-%s is reversed", start, end)
	}
	count := new(big.Int).Sub(hi, lo)
	if count.Cmp(big.NewInt(MaxExpanded-1)) > 0 {
		return nil, errors.Errorf("range %s-%s has more than %d addresses", start, end, MaxExpanded)
	}

	ips := make([]string, 0, count.Int64()+1)
	one := big.NewInt(1)
	for n := lo; n.Cmp(hi) <= 0; n = new(big.Int).Add(n, one) {
		ips = append(ips, toIP(n, v4).String())
	}
	return ips, nil
}

// UsableIPs lists the host addresses of a CIDR block. For IPv4 the network
// and broadcast addresses are left out unless the block is a /31 or /32.
func UsableIPs(cidr string) ([]string, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid CIDR block '%s'", cidr)
	}
	ones, bits := ipNet.Mask.Size()
	v4 := bits == net.IPv4len*8
	hostBits := bits - ones
	if hostBits > 12 {
		return nil, errors.Errorf("CIDR block %s has more than %d addresses", cidr, MaxExpanded)
	}

	first := toInt(ipNet.IP)
	last := new(big.Int).Add(first, big.NewInt(int64(1)<<hostBits-1))
	if v4 && hostBits > 1 {
		first.Add(first, big.NewInt(1))
		last.Sub(last, big.NewInt(1))
	}
	return RangeIPs(toIP(first, v4).String(), toIP(last, v4).String())
}

func toInt(ip net.IP) *big.Int {
	if v4 := ip.To4(); v4 != nil {
		return new(big.Int).SetBytes(v4)
	}
	return new(big.Int).SetBytes(ip.To16())
}

func toIP(n *big.Int, v4 bool) net.IP {
	size := net.IPv6len
	if v4 {
		size = net.IPv4len
	}
	b := n.Bytes()
	ip := make(net.IP, size)
	copy(ip[size-len(b):], b)
	return ip
}
