package config

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// CIDRSubnet calculates a subnet address given a network address, a netmask size increase, and a subnet number.
// This mimics the behavior of Terraform's cidrsubnet function.
//
// Parameters:
//   - prefix: The network prefix (e.g., "10.0.0.0/16")
//   - newbits: The number of additional bits to add to the prefix length (e.g., 8 for /24 inside /16)
//   - netnum: The zero-based index of the subnet to calculate
//
// Only IPv4 is supported.
func CIDRSubnet(prefix string, newbits int, netnum int) (string, error) {
	network, err := parseIPv4Prefix(prefix)
	if err != nil {
		return "", err
	}

	newMaskSize := network.Bits() + newbits
	if newbits < 0 || newMaskSize > 32 {
		return "", fmt.Errorf("prefix extension of %d bits is too large for %s", newbits, prefix)
	}

	maxSubnets := 1 << newbits
	if netnum < 0 || netnum >= maxSubnets {
		return "", fmt.Errorf("subnet number %d exceeds max subnets %d", netnum, maxSubnets)
	}

	subnetSize := uint32(1) << (32 - newMaskSize)
	// #nosec G115
	base := ipv4ToUint(network.Addr()) + uint32(netnum)*subnetSize

	return netip.PrefixFrom(uintToIPv4(base), newMaskSize).String(), nil
}

// CIDRHost calculates a full host IP address for a given network address and host number.
// This mimics the behavior of Terraform's cidrhost function. Negative host
// numbers count back from the end of the range.
func CIDRHost(prefix string, hostnum int) (string, error) {
	network, err := parseIPv4Prefix(prefix)
	if err != nil {
		return "", err
	}

	maxHosts := uint64(1) << (32 - network.Bits())

	var offset uint64
	if hostnum < 0 {
		abs := uint64(-hostnum)
		if abs > maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
		offset = maxHosts - abs
	} else {
		offset = uint64(hostnum)
		if offset >= maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
	}

	// #nosec G115
	return uintToIPv4(ipv4ToUint(network.Addr()) + uint32(offset)).String(), nil
}

// CIDRContains reports whether inner lies entirely within outer.
func CIDRContains(outer, inner string) (bool, error) {
	o, err := parseIPv4Prefix(outer)
	if err != nil {
		return false, err
	}
	i, err := parseIPv4Prefix(inner)
	if err != nil {
		return false, err
	}
	return o.Bits() <= i.Bits() && o.Contains(i.Addr()), nil
}

// parseIPv4Prefix parses prefix and masks it to its network address.
func parseIPv4Prefix(prefix string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(prefix)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 addresses are supported, got IPv6: %s", prefix)
	}
	return p.Masked(), nil
}

func ipv4ToUint(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uintToIPv4(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
