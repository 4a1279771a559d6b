package dns

import (
	"strings"

	mdns "github.com/miekg/dns"
)

// FQDN resolves a record name against its zone into the trailing-dot form
// Route 53 expects.
// e.g. ("@", "example.com") → "example.com."
// e.g. ("www", "example.com") → "www.example.com."
// e.g. ("sub.example.com.", "example.com") → "sub.example.com."
func FQDN(name, zoneName string) string {
	name = strings.TrimSpace(name)
	zoneName = strings.TrimSuffix(strings.TrimSpace(zoneName), ".")
	switch {
	case name == "@" || name == "":
		return mdns.Fqdn(zoneName)
	case mdns.IsFqdn(name):
		return name
	}
	return mdns.Fqdn(name + "." + zoneName)
}

// RelativeName is the inverse of FQDN: it returns "@" for the apex and the
// label prefix for names inside the zone. Names outside the zone are returned
// without their trailing dot.
func RelativeName(name, zoneName string) string {
	name = strings.TrimSuffix(name, ".")
	zoneName = strings.TrimSuffix(zoneName, ".")
	if strings.EqualFold(name, zoneName) {
		return "@"
	}
	if suffix := "." + zoneName; len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// MatchZone finds the most specific zone containing hostname by walking up
// its labels. e.g. "app.dev.example.com" matches "dev.example.com" before
// "example.com".
func MatchZone(zones []Zone, hostname string) (Zone, bool) {
	byName := make(map[string]Zone, len(zones))
	for _, z := range zones {
		key := strings.ToLower(z.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = z
		}
	}

	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	for h := hostname; h != ""; {
		if z, ok := byName[h]; ok {
			return z, true
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		h = h[idx+1:]
	}
	return Zone{}, false
}
