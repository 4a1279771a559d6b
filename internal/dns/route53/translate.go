package route53

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/samber/lo"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/route53api"
)

// DefaultTTL replaces an unset or automatic TTL; Route 53 needs an explicit
// one on every non-alias set.
const DefaultTTL = 300

// CreateRecordSet maps req onto a record set named relative to zoneName.
func CreateRecordSet(req dns.CreateRecordRequest, zoneName string) route53api.ResourceRecordSet {
	typ := dns.NormalizeType(req.Type)
	return route53api.ResourceRecordSet{
		Name: dns.FQDN(req.Name, zoneName),
		Type: types.RRType(typ),
		TTL:  aws.Int64(int64(ttlOrDefault(req.TTL))),
		ResourceRecords: route53api.ResourceRecords{
			{Value: recordValue(typ, req.Content, req.Priority, req.SRV, req.CAA)},
		},
	}
}

// MergeRecordSet applies req on top of old. Fields req leaves nil keep their
// value from old. The first resource record value is replaced when the value
// changes; further values are kept unless the type changes.
func MergeRecordSet(old route53api.ResourceRecordSet, req dns.UpdateRecordRequest, zoneName string) (route53api.ResourceRecordSet, error) {
	merged := old
	merged.ResourceRecords = slices.Clone(old.ResourceRecords)
	if old.TTL != nil {
		merged.TTL = aws.Int64(*old.TTL)
	}

	if req.Name != nil {
		merged.Name = dns.FQDN(*req.Name, zoneName)
	}
	typ := string(old.Type)
	typeChanged := false
	if req.Type != nil && dns.NormalizeType(*req.Type) != typ {
		typ = dns.NormalizeType(*req.Type)
		merged.Type = types.RRType(typ)
		typeChanged = true
	}

	valueChanged := req.Content != nil || req.Priority != nil || req.SRV != nil || req.CAA != nil
	if old.IsAlias() {
		if valueChanged || req.TTL != nil {
			return route53api.ResourceRecordSet{}, dns.InvalidRequestf("%s is an alias record set; only its name and type can be changed here", old.Name)
		}
		return merged, nil
	}

	if req.TTL != nil || merged.TTL == nil {
		merged.TTL = aws.Int64(int64(ttlOrDefault(req.TTL)))
	}

	if valueChanged {
		current := ""
		if len(old.ResourceRecords) > 0 {
			current = old.ResourceRecords[0].Value
		}
		value := mergedValue(typ, current, req)
		if typeChanged || len(merged.ResourceRecords) == 0 {
			merged.ResourceRecords = route53api.ResourceRecords{{Value: value}}
		} else {
			merged.ResourceRecords[0].Value = value
		}
	}
	return merged, nil
}

// mergedValue builds the new first value. For MX a change to only the
// priority or only the target keeps the other half from current.
func mergedValue(typ, current string, req dns.UpdateRecordRequest) string {
	if typ == "MX" {
		prio, target := parseMX(current)
		if req.Priority != nil {
			prio = req.Priority
		}
		if req.Content != nil {
			target = *req.Content
		}
		return recordValue(typ, target, prio, nil, nil)
	}
	return recordValue(typ, lo.FromPtrOr(req.Content, current), req.Priority, req.SRV, req.CAA)
}

func parseMX(value string) (*uint16, string) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return nil, value
	}
	prio, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return nil, value
	}
	return lo.ToPtr(uint16(prio)), fields[1]
}

// recordValue renders the single-string value Route 53 stores:
// MX "prio target", SRV "prio weight port target", CAA `flags tag "value"`,
// TXT quoted.
func recordValue(typ, content string, priority *uint16, srv *dns.SRVData, caa *dns.CAAData) string {
	switch typ {
	case "MX":
		if priority != nil {
			return fmt.Sprintf("%d %s", *priority, content)
		}
	case "SRV":
		if srv != nil {
			return fmt.Sprintf("%d %d %d %s", srv.Priority, srv.Weight, srv.Port, srv.Target)
		}
	case "CAA":
		if caa != nil {
			return fmt.Sprintf("%d %s %s", caa.Flags, caa.Tag, quote(caa.Value))
		}
	case "TXT":
		if !strings.HasPrefix(content, `"`) {
			return quote(content)
		}
	}
	return content
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func ttlOrDefault(ttl *int) int {
	if ttl == nil || *ttl == dns.TTLAuto {
		return DefaultTTL
	}
	return *ttl
}

func batchComment(comment *string, fallback string) string {
	if comment != nil && *comment != "" {
		return *comment
	}
	return fallback
}
