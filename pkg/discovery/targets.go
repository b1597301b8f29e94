package discovery

import (
	"net/netip"
	"strings"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// maxExpandedHosts caps CIDR expansion so a typo'd prefix cannot queue
// an absurd scan.
const maxExpandedHosts = 4096

// ExpandTargets turns a mixed list of CIDR networks and explicit
// addresses into the host identities to discover. An explicit address
// is passed through verbatim; a CIDR is expanded to its usable host
// addresses with the network tag set. Duplicate addresses collapse to
// the first occurrence. Malformed networks are a CONFIG_ERROR.
func ExpandTargets(targets []string, roles map[string]inventory.Role) ([]inventory.Identity, error) {
	seen := make(map[string]struct{})
	hosts := make([]inventory.Identity, 0, len(targets))

	add := func(id inventory.Identity) error {
		if _, dup := seen[id.Addr]; dup {
			return nil
		}
		if len(hosts) >= maxExpandedHosts {
			return errors.Newf(errors.ErrCodeConfig,
				"target expansion exceeds %d hosts", maxExpandedHosts)
		}
		seen[id.Addr] = struct{}{}
		if role, ok := roles[id.Addr]; ok {
			id.Role = role
		}
		hosts = append(hosts, id)
		return nil
	}

	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}

		if !strings.Contains(target, "/") {
			if err := add(inventory.Identity{Addr: target}); err != nil {
				return nil, err
			}
			continue
		}

		prefix, err := netip.ParsePrefix(target)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "malformed network range "+target, err)
		}
		prefix = prefix.Masked()

		if prefix.IsSingleIP() {
			if err := add(inventory.Identity{Addr: prefix.Addr().String(), Network: prefix.String()}); err != nil {
				return nil, err
			}
			continue
		}

		// A /31 reserves no network or broadcast address; both of its
		// addresses are usable hosts (RFC 3021).
		start := prefix.Addr().Next()
		if prefix.Addr().Is4() && prefix.Bits() == 31 {
			start = prefix.Addr()
		}

		for addr := start; prefix.Contains(addr); addr = addr.Next() {
			if isBroadcast(addr, prefix) {
				break
			}
			if err := add(inventory.Identity{Addr: addr.String(), Network: prefix.String()}); err != nil {
				return nil, err
			}
		}
	}

	return hosts, nil
}

// isBroadcast reports whether addr is the IPv4 broadcast address of the
// prefix. IPv6 has no broadcast address.
func isBroadcast(addr netip.Addr, prefix netip.Prefix) bool {
	if !addr.Is4() || prefix.Bits() >= 31 {
		return false
	}
	return !prefix.Contains(addr.Next())
}
