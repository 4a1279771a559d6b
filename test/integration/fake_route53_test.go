package integration

import (
	"cmp"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/route53api"
)

// fakeRoute53 is a minimal in-memory Route 53 REST API for testing. Change
// batches are applied all-or-nothing.
type fakeRoute53 struct {
	mu          sync.Mutex
	accessKeyID string
	pageSize    int // caps maxitems so pagination is exercised
	zones       []route53api.HostedZone
	sets        map[string][]route53api.ResourceRecordSet // short zone id -> sets
	comments    []string
	calls       []string // tracks endpoint calls in order
}

func newFakeRoute53(accessKeyID string, pageSize int, zones ...route53api.HostedZone) *fakeRoute53 {
	return &fakeRoute53{
		accessKeyID: accessKeyID,
		pageSize:    pageSize,
		zones:       zones,
		sets:        map[string][]route53api.ResourceRecordSet{},
	}
}

func (f *fakeRoute53) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.RequestURI())
	f.mu.Unlock()

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential="+f.accessKeyID+"/") || r.Header.Get("X-Amz-Date") == "" {
		writeError(w, http.StatusForbidden, "InvalidClientTokenId", "The security token included in the request is invalid.")
		return
	}

	prefix := "/" + route53api.APIVersion + "/hostedzone"
	path := strings.TrimPrefix(r.URL.Path, prefix)
	switch {
	case path == "" && r.Method == http.MethodGet:
		f.handleListZones(w, r)
	case strings.HasSuffix(path, "/rrset") && r.Method == http.MethodGet:
		f.handleListSets(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/rrset"))
	case strings.HasSuffix(path, "/rrset") && r.Method == http.MethodPost:
		f.handleChange(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/rrset"))
	default:
		writeError(w, http.StatusNotFound, "NotFound", "no route for "+r.URL.Path)
	}
}

func writeXML(w http.ResponseWriter, status int, v any) {
	data, err := route53api.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, route53api.ErrorResponse{
		Error:     route53api.ErrorDetail{Type: "Sender", Code: code, Message: message},
		RequestID: "req-fake",
	})
}

// writeInvalidBatch replies the way Route 53 rejects a change batch.
func writeInvalidBatch(w http.ResponseWriter, messages ...string) {
	writeXML(w, http.StatusBadRequest, route53api.InvalidChangeBatch{
		Xmlns:     route53api.Namespace,
		Messages:  messages,
		RequestID: "req-fake",
	})
}

func (f *fakeRoute53) limit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("maxitems"))
	if n <= 0 || n > f.pageSize {
		n = f.pageSize
	}
	return n
}

func (f *fakeRoute53) handleListZones(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if marker := r.URL.Query().Get("marker"); marker != "" {
		start = slices.IndexFunc(f.zones, func(z route53api.HostedZone) bool { return z.ShortID() == marker })
		if start < 0 {
			writeError(w, http.StatusBadRequest, "InvalidInput", "unknown marker "+marker)
			return
		}
	}
	end := min(start+f.limit(r), len(f.zones))

	resp := route53api.ListHostedZonesResponse{
		HostedZones: slices.Clone(f.zones[start:end]),
		Marker:      r.URL.Query().Get("marker"),
		MaxItems:    strconv.Itoa(f.limit(r)),
	}
	if end < len(f.zones) {
		resp.IsTruncated = true
		resp.NextMarker = f.zones[end].ShortID()
	}
	writeXML(w, http.StatusOK, resp)
}

func setKey(s route53api.ResourceRecordSet) string {
	return strings.ToLower(s.Name) + "|" + string(s.Type) + "|" + s.SetIdentifier
}

func compareSets(a, b route53api.ResourceRecordSet) int {
	return cmp.Or(
		strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
		strings.Compare(string(a.Type), string(b.Type)),
		strings.Compare(a.SetIdentifier, b.SetIdentifier),
	)
}

func (f *fakeRoute53) handleListSets(w http.ResponseWriter, r *http.Request, zoneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.hasZone(zoneID) {
		writeError(w, http.StatusNotFound, "NoSuchHostedZone", "No hosted zone found with ID: "+zoneID)
		return
	}
	sets := f.sets[zoneID]
	q := r.URL.Query()
	start := 0
	if name := q.Get("name"); name != "" {
		cursor := route53api.ResourceRecordSet{Name: name, Type: types.RRType(q.Get("type")), SetIdentifier: q.Get("identifier")}
		start = slices.IndexFunc(sets, func(s route53api.ResourceRecordSet) bool { return compareSets(s, cursor) >= 0 })
		if start < 0 {
			start = len(sets)
		}
	}
	end := min(start+f.limit(r), len(sets))

	resp := route53api.ListResourceRecordSetsResponse{
		ResourceRecordSets: slices.Clone(sets[start:end]),
		MaxItems:           strconv.Itoa(f.limit(r)),
	}
	if end < len(sets) {
		next := sets[end]
		resp.IsTruncated = true
		resp.NextRecordName = next.Name
		resp.NextRecordType = next.Type
		resp.NextRecordIdentifier = next.SetIdentifier
	}
	writeXML(w, http.StatusOK, resp)
}

func (f *fakeRoute53) hasZone(id string) bool {
	return slices.ContainsFunc(f.zones, func(z route53api.HostedZone) bool { return z.ShortID() == id })
}

func (f *fakeRoute53) handleChange(w http.ResponseWriter, r *http.Request, zoneID string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}
	doc, err := route53api.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidInput", "Invalid XML ; "+err.Error())
		return
	}
	req, ok := doc.(*route53api.ChangeResourceRecordSetsRequest)
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidInput", fmt.Sprintf("unexpected document %T", doc))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasZone(zoneID) {
		writeError(w, http.StatusNotFound, "NoSuchHostedZone", "No hosted zone found with ID: "+zoneID)
		return
	}

	sets := slices.Clone(f.sets[zoneID])
	for _, c := range req.ChangeBatch.Changes {
		set := c.ResourceRecordSet
		idx := slices.IndexFunc(sets, func(s route53api.ResourceRecordSet) bool { return setKey(s) == setKey(set) })
		switch c.Action {
		case types.ChangeActionCreate:
			if idx >= 0 {
				writeInvalidBatch(w, fmt.Sprintf("Tried to create resource record set [name='%s', type='%s'] but it already exists", set.Name, set.Type))
				return
			}
			sets = append(sets, set)
		case types.ChangeActionDelete:
			if idx < 0 || !slices.Equal(sets[idx].Values(), set.Values()) || ttl(sets[idx]) != ttl(set) {
				writeInvalidBatch(w, fmt.Sprintf("Tried to delete resource record set [name='%s', type='%s'] but it was not found", set.Name, set.Type))
				return
			}
			sets = slices.Delete(sets, idx, idx+1)
		default:
			writeError(w, http.StatusBadRequest, "InvalidInput", "unsupported action "+string(c.Action))
			return
		}
	}
	slices.SortFunc(sets, compareSets)
	f.sets[zoneID] = sets
	f.comments = append(f.comments, req.ChangeBatch.Comment)

	writeXML(w, http.StatusOK, route53api.ChangeResourceRecordSetsResponse{
		ChangeInfo: route53api.ChangeInfo{
			ID:          fmt.Sprintf("/change/C%d", len(f.comments)),
			Status:      types.ChangeStatusPending,
			SubmittedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Comment:     req.ChangeBatch.Comment,
		},
	})
}

func ttl(s route53api.ResourceRecordSet) int64 {
	if s.TTL == nil {
		return 0
	}
	return *s.TTL
}

// seed stores sets directly, bypassing the API.
func (f *fakeRoute53) seed(zoneID string, sets ...route53api.ResourceRecordSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[zoneID] = append(f.sets[zoneID], sets...)
	slices.SortFunc(f.sets[zoneID], compareSets)
}

func (f *fakeRoute53) stored(zoneID string) []route53api.ResourceRecordSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sets[zoneID])
}

func (f *fakeRoute53) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}
