package cloudflare

import (
	"github.com/samber/lo"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
)

// RecordPayload is the JSON body of a create (POST) or update (PATCH) call.
// Zero fields are omitted, which gives PATCH its leave-unchanged meaning.
type RecordPayload struct {
	Type     string  `json:"type,omitempty"`
	Name     string  `json:"name,omitempty"`
	Content  string  `json:"content,omitempty"`
	TTL      int     `json:"ttl,omitempty"`
	Proxied  *bool   `json:"proxied,omitempty"`
	Priority *uint16 `json:"priority,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	Data     any     `json:"data,omitempty"`
}

// CreatePayload maps a create request onto the Cloudflare body. TTL defaults
// to 1 (automatic). SRV and CAA values travel in data, not content.
func CreatePayload(req dns.CreateRecordRequest) RecordPayload {
	typ := dns.NormalizeType(req.Type)
	p := RecordPayload{
		Type:    typ,
		Name:    req.Name,
		Content: req.Content,
		TTL:     lo.FromPtrOr(req.TTL, dns.TTLAuto),
		Proxied: req.Proxied,
		Comment: req.Comment,
	}
	setStructured(&p, typ, req.Priority, req.SRV, req.CAA)
	return p
}

// UpdatePayload carries only the fields set on req.
func UpdatePayload(req dns.UpdateRecordRequest) RecordPayload {
	typ := dns.NormalizeType(lo.FromPtr(req.Type))
	p := RecordPayload{
		Type:    typ,
		Name:    lo.FromPtr(req.Name),
		Content: lo.FromPtr(req.Content),
		TTL:     lo.FromPtr(req.TTL),
		Proxied: req.Proxied,
		Comment: req.Comment,
	}
	setStructured(&p, typ, req.Priority, req.SRV, req.CAA)
	return p
}

func setStructured(p *RecordPayload, typ string, priority *uint16, srv *dns.SRVData, caa *dns.CAAData) {
	switch {
	case srv != nil && (typ == "SRV" || typ == ""):
		p.Data = *srv
		p.Content = ""
	case caa != nil && (typ == "CAA" || typ == ""):
		p.Data = *caa
		p.Content = ""
	case priority != nil && (typ == "MX" || typ == ""):
		p.Priority = priority
	}
}
