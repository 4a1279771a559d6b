package dns

import (
	"strconv"
	"strings"

	"github.com/cloudflare/cloudflare-go"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/route53api"
)

// Kind identifies a DNS hosting provider.
type Kind string

const (
	KindCloudflare Kind = "cloudflare"
	KindRoute53    Kind = "route53"
)

func (k Kind) String() string { return string(k) }

// Zone is a provider zone in canonical form. Zones are rebuilt on every
// listing and never mutated.
type Zone struct {
	Provider Kind
	ID       string // provider zone id
	Name     string // display name, never with a trailing dot
}

// NewZone builds a Zone, stripping any trailing dot from name.
func NewZone(provider Kind, id, name string) Zone {
	return Zone{Provider: provider, ID: id, Name: strings.TrimSuffix(name, ".")}
}

// Key is the zone identity, stable across refreshes.
func (z Zone) Key() string {
	return string(z.Provider) + "|" + z.ID
}

// RecordData is implemented by the provider-native record variants only.
type RecordData interface {
	isRecordData()
}

// CloudflareRecord wraps a Cloudflare DNS record as returned by the API.
type CloudflareRecord struct {
	cloudflare.DNSRecord
}

// Route53RecordSet wraps a Route 53 resource record set.
type Route53RecordSet struct {
	route53api.ResourceRecordSet
}

func (CloudflareRecord) isRecordData() {}
func (Route53RecordSet) isRecordData() {}

// Record is a DNS record from any provider. The accessors resolve the
// canonical fields from whichever variant Data holds.
type Record struct {
	Data RecordData
}

// NewCloudflareRecord wraps r.
func NewCloudflareRecord(r cloudflare.DNSRecord) Record {
	return Record{Data: CloudflareRecord{DNSRecord: r}}
}

// NewRoute53Record wraps s.
func NewRoute53Record(s route53api.ResourceRecordSet) Record {
	return Record{Data: Route53RecordSet{ResourceRecordSet: s}}
}

func (r Record) Provider() Kind {
	switch r.Data.(type) {
	case CloudflareRecord:
		return KindCloudflare
	case Route53RecordSet:
		return KindRoute53
	}
	return ""
}

// ID is unique within one zone listing. Route 53 has no record ids, so one
// is synthesized as name|type|setIdentifier.
func (r Record) ID() string {
	switch d := r.Data.(type) {
	case CloudflareRecord:
		return d.ID
	case Route53RecordSet:
		return d.Name + "|" + string(d.Type) + "|" + d.SetIdentifier
	}
	return ""
}

func (r Record) Name() string {
	switch d := r.Data.(type) {
	case CloudflareRecord:
		return d.Name
	case Route53RecordSet:
		return unescapeRoute53Name(d.Name)
	}
	return ""
}

func (r Record) Type() string {
	switch d := r.Data.(type) {
	case CloudflareRecord:
		return d.Type
	case Route53RecordSet:
		return string(d.Type)
	}
	return ""
}

// Content is the record value. For Route 53 it is the first resource record
// value, or the alias target when the set is an alias.
func (r Record) Content() string {
	switch d := r.Data.(type) {
	case CloudflareRecord:
		return d.Content
	case Route53RecordSet:
		if len(d.ResourceRecords) > 0 {
			return d.ResourceRecords[0].Value
		}
		if d.AliasTarget != nil {
			return d.AliasTarget.DNSName
		}
	}
	return ""
}

// TTL in seconds. Cloudflare uses 1 for automatic; Route 53 aliases have none
// and report 0.
func (r Record) TTL() int {
	switch d := r.Data.(type) {
	case CloudflareRecord:
		return d.TTL
	case Route53RecordSet:
		if d.TTL != nil {
			return int(*d.TTL)
		}
	}
	return 0
}

// Proxied is nil for providers without a proxy concept.
func (r Record) Proxied() *bool {
	if d, ok := r.Data.(CloudflareRecord); ok {
		return d.Proxied
	}
	return nil
}

// Priority is nil for Route 53, which keeps it inside the value.
func (r Record) Priority() *uint16 {
	if d, ok := r.Data.(CloudflareRecord); ok {
		return d.Priority
	}
	return nil
}

// unescapeRoute53Name decodes the \ddd octal escapes Route 53 uses for
// characters such as '*' in returned names.
func unescapeRoute53Name(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+4 <= len(name) {
			if v, err := strconv.ParseUint(name[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}
