package dns

import (
	"net/netip"
	"strings"

	mdns "github.com/miekg/dns"
	"github.com/samber/lo"
)

const (
	// TTLAuto asks the provider to pick the TTL.
	TTLAuto = 1
	MinTTL  = 60
	MaxTTL  = 86400

	maxNameLength = 253
)

// SupportedTypes lists the record types that can be created or updated.
var SupportedTypes = []string{"A", "AAAA", "CNAME", "MX", "TXT", "SRV", "PTR", "CAA", "NS"}

var (
	proxiableTypes = []string{"A", "AAAA", "CNAME"}
	caaTags        = []string{"issue", "issuewild", "iodef"}
)

// SRVData is the structured value of an SRV record.
type SRVData struct {
	Service  string `json:"service"` // e.g. "_sip"
	Proto    string `json:"proto"`   // e.g. "_tcp"
	Priority uint16 `json:"priority"`
	Weight   uint16 `json:"weight"`
	Port     uint16 `json:"port"`
	Target   string `json:"target"`
}

// CAAData is the structured value of a CAA record.
type CAAData struct {
	Flags uint8  `json:"flags"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// CreateRecordRequest describes a new record. Name is relative to the zone,
// "@" for the apex, or fully qualified with a trailing dot.
type CreateRecordRequest struct {
	Name     string
	Type     string
	Content  string
	TTL      *int
	Proxied  *bool
	Priority *uint16 // MX only
	Comment  *string
	SRV      *SRVData
	CAA      *CAAData
}

// UpdateRecordRequest is a partial patch: nil fields keep their current value.
type UpdateRecordRequest struct {
	Name     *string
	Type     *string
	Content  *string
	TTL      *int
	Proxied  *bool
	Priority *uint16
	Comment  *string
	SRV      *SRVData
	CAA      *CAAData
}

// NormalizeType upper-cases and trims a record type.
func NormalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// Validate checks the request before any provider call is made.
func (r CreateRecordRequest) Validate() error {
	typ := NormalizeType(r.Type)
	if err := validateName(r.Name); err != nil {
		return err
	}
	if !lo.Contains(SupportedTypes, typ) {
		return InvalidRequestf("unsupported record type %q", r.Type)
	}
	if err := validateTTL(r.TTL); err != nil {
		return err
	}
	if lo.FromPtr(r.Proxied) && !lo.Contains(proxiableTypes, typ) {
		return InvalidRequestf("%s records cannot be proxied", typ)
	}
	if r.Priority != nil && typ != "MX" {
		return priorityMisuse(typ)
	}

	switch typ {
	case "SRV":
		return validateSRV(r.SRV)
	case "CAA":
		return validateCAA(r.CAA)
	case "MX":
		if r.Priority == nil {
			return InvalidRequestf("MX records need a priority")
		}
	}
	return validateContent(typ, r.Content)
}

// Validate checks the fields that are set. currentType is the type of the
// record being updated and applies when the request does not change it.
func (r UpdateRecordRequest) Validate(currentType string) error {
	if r.IsEmpty() {
		return InvalidRequestf("update changes nothing")
	}
	typ := NormalizeType(currentType)
	if r.Type != nil {
		typ = NormalizeType(*r.Type)
		if !lo.Contains(SupportedTypes, typ) {
			return InvalidRequestf("unsupported record type %q", *r.Type)
		}
	}
	if r.Name != nil {
		if err := validateName(*r.Name); err != nil {
			return err
		}
	}
	if err := validateTTL(r.TTL); err != nil {
		return err
	}
	if lo.FromPtr(r.Proxied) && !lo.Contains(proxiableTypes, typ) {
		return InvalidRequestf("%s records cannot be proxied", typ)
	}
	if r.Priority != nil && typ != "MX" {
		return priorityMisuse(typ)
	}
	if r.SRV != nil {
		if err := validateSRV(r.SRV); err != nil {
			return err
		}
	}
	if r.CAA != nil {
		if err := validateCAA(r.CAA); err != nil {
			return err
		}
	}
	if r.Content != nil && typ != "SRV" && typ != "CAA" {
		return validateContent(typ, *r.Content)
	}
	return nil
}

func priorityMisuse(typ string) error {
	if typ == "SRV" {
		return InvalidRequestf("SRV priority belongs in the SRV data")
	}
	return InvalidRequestf("%s records have no priority", typ)
}

// IsEmpty reports whether no field is set.
func (r UpdateRecordRequest) IsEmpty() bool {
	return r == UpdateRecordRequest{}
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return InvalidRequestf("record name is empty")
	case name == "@":
		return nil
	case len(name) > maxNameLength:
		return InvalidRequestf("record name is longer than %d characters", maxNameLength)
	}
	if _, ok := mdns.IsDomainName(name); !ok {
		return InvalidRequestf("record name %q is not a valid domain name", name)
	}
	return nil
}

func validateTTL(ttl *int) error {
	if ttl == nil || *ttl == TTLAuto {
		return nil
	}
	if *ttl < MinTTL || *ttl > MaxTTL {
		return InvalidRequestf("ttl %d out of range, use %d (automatic) or %d..%d", *ttl, TTLAuto, MinTTL, MaxTTL)
	}
	return nil
}

func validateContent(typ, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return InvalidRequestf("%s record content is empty", typ)
	}
	switch typ {
	case "A":
		if addr, err := netip.ParseAddr(content); err != nil || !addr.Is4() {
			return InvalidRequestf("%q is not an IPv4 address", content)
		}
	case "AAAA":
		if addr, err := netip.ParseAddr(content); err != nil || !addr.Is6() {
			return InvalidRequestf("%q is not an IPv6 address", content)
		}
	case "CNAME", "NS", "PTR", "MX":
		if _, ok := mdns.IsDomainName(content); !ok {
			return InvalidRequestf("%q is not a valid host name", content)
		}
	}
	return nil
}

func validateSRV(d *SRVData) error {
	if d == nil {
		return InvalidRequestf("SRV records need service, proto, priority, weight, port and target")
	}
	if d.Port == 0 {
		return InvalidRequestf("SRV port must be between 1 and 65535")
	}
	if strings.TrimSpace(d.Target) == "" {
		return InvalidRequestf("SRV target is empty")
	}
	if _, ok := mdns.IsDomainName(d.Target); !ok {
		return InvalidRequestf("SRV target %q is not a valid host name", d.Target)
	}
	return nil
}

func validateCAA(d *CAAData) error {
	if d == nil {
		return InvalidRequestf("CAA records need flags, tag and value")
	}
	if !lo.Contains(caaTags, d.Tag) {
		return InvalidRequestf("CAA tag %q must be one of %s", d.Tag, strings.Join(caaTags, ", "))
	}
	if strings.TrimSpace(d.Value) == "" {
		return InvalidRequestf("CAA value is empty")
	}
	return nil
}
