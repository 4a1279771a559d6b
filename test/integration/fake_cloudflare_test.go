package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	cf "github.com/cloudflare/cloudflare-go"
)

// fakeCloudflare is a minimal in-memory Cloudflare v4 DNS API for testing.
type fakeCloudflare struct {
	mu      sync.Mutex
	token   string
	zones   []cf.Zone
	records map[string][]cf.DNSRecord // zone id -> records
	nextID  int
	calls   []string // tracks endpoint calls in order
}

func newFakeCloudflare(token string, zones ...cf.Zone) *fakeCloudflare {
	return &fakeCloudflare{token: token, zones: zones, records: map[string][]cf.DNSRecord{}}
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.RequestURI())
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeEnvelope(w, http.StatusForbidden, nil, nil, cfError{Code: 9109, Message: "Invalid access token"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "zones" && r.Method == http.MethodGet:
		f.handleListZones(w, r)
	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodGet:
		f.handleListRecords(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodPost:
		f.handleCreate(w, r, parts[1])
	case len(parts) == 4 && parts[2] == "dns_records" && r.Method == http.MethodPatch:
		f.handlePatch(w, r, parts[1], parts[3])
	case len(parts) == 4 && parts[2] == "dns_records" && r.Method == http.MethodDelete:
		f.handleDelete(w, parts[1], parts[3])
	default:
		writeEnvelope(w, http.StatusNotFound, nil, nil, cfError{Code: 7003, Message: "Could not route to " + r.URL.Path})
	}
}

type cfError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeEnvelope(w http.ResponseWriter, status int, result any, info map[string]int, errs ...cfError) {
	body := map[string]any{
		"success":  len(errs) == 0,
		"errors":   append([]cfError{}, errs...),
		"messages": []any{},
		"result":   result,
	}
	if info != nil {
		body["result_info"] = info
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// page slices n items by the page and per_page query parameters.
func page(r *http.Request, n int) (start, end int, info map[string]int) {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if p < 1 {
		p = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start = min((p-1)*perPage, n)
	end = min(start+perPage, n)
	total := (n + perPage - 1) / perPage
	return start, end, map[string]int{"page": p, "per_page": perPage, "count": end - start, "total_count": n, "total_pages": total}
}

func (f *fakeCloudflare) zone(id string) (cf.Zone, bool) {
	for _, z := range f.zones {
		if z.ID == id {
			return z, true
		}
	}
	return cf.Zone{}, false
}

func (f *fakeCloudflare) handleListZones(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	zones := f.zones
	if name := r.URL.Query().Get("name"); name != "" {
		zones = nil
		for _, z := range f.zones {
			if z.Name == name {
				zones = append(zones, z)
			}
		}
	}
	start, end, info := page(r, len(zones))
	result := []map[string]string{}
	for _, z := range zones[start:end] {
		result = append(result, map[string]string{"id": z.ID, "name": z.Name, "status": "active"})
	}
	writeEnvelope(w, http.StatusOK, result, info)
}

func (f *fakeCloudflare) handleListRecords(w http.ResponseWriter, r *http.Request, zoneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.zone(zoneID); !ok {
		writeEnvelope(w, http.StatusNotFound, nil, nil, cfError{Code: 1001, Message: "Invalid zone identifier"})
		return
	}
	records := f.records[zoneID]
	start, end, info := page(r, len(records))
	writeEnvelope(w, http.StatusOK, append([]cf.DNSRecord{}, records[start:end]...), info)
}

// qualify mirrors Cloudflare's expansion of "@" and relative names.
func qualify(name, zoneName string) string {
	switch {
	case name == "@":
		return zoneName
	case name == zoneName || strings.HasSuffix(name, "."+zoneName):
		return name
	}
	return strings.TrimSuffix(name, ".") + "." + zoneName
}

type recordBody struct {
	Type     *string `json:"type"`
	Name     *string `json:"name"`
	Content  *string `json:"content"`
	TTL      *int    `json:"ttl"`
	Proxied  *bool   `json:"proxied"`
	Priority *uint16 `json:"priority"`
	Data     any     `json:"data"`
}

func readBody(r *http.Request) (recordBody, error) {
	var body recordBody
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return body, err
	}
	return body, json.Unmarshal(data, &body)
}

func (f *fakeCloudflare) apply(rec *cf.DNSRecord, body recordBody, zoneName string) {
	if body.Type != nil {
		rec.Type = *body.Type
	}
	if body.Name != nil {
		rec.Name = qualify(*body.Name, zoneName)
	}
	if body.Content != nil {
		rec.Content = *body.Content
	}
	if body.TTL != nil {
		rec.TTL = *body.TTL
	}
	if body.Proxied != nil {
		rec.Proxied = body.Proxied
	}
	if body.Priority != nil {
		rec.Priority = body.Priority
	}
	if body.Data != nil {
		rec.Data = body.Data
	}
}

func (f *fakeCloudflare) handleCreate(w http.ResponseWriter, r *http.Request, zoneID string) {
	body, err := readBody(r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, nil, cfError{Code: 9207, Message: "Request body is invalid."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zone(zoneID)
	if !ok {
		writeEnvelope(w, http.StatusNotFound, nil, nil, cfError{Code: 1001, Message: "Invalid zone identifier"})
		return
	}
	f.nextID++
	rec := cf.DNSRecord{ID: fmt.Sprintf("rec-%d", f.nextID)}
	f.apply(&rec, body, z.Name)
	f.records[zoneID] = append(f.records[zoneID], rec)
	writeEnvelope(w, http.StatusOK, rec, nil)
}

func (f *fakeCloudflare) handlePatch(w http.ResponseWriter, r *http.Request, zoneID, id string) {
	body, err := readBody(r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, nil, cfError{Code: 9207, Message: "Request body is invalid."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	z, _ := f.zone(zoneID)
	for i := range f.records[zoneID] {
		if f.records[zoneID][i].ID == id {
			f.apply(&f.records[zoneID][i], body, z.Name)
			writeEnvelope(w, http.StatusOK, f.records[zoneID][i], nil)
			return
		}
	}
	writeEnvelope(w, http.StatusNotFound, nil, nil, cfError{Code: 81044, Message: "Record does not exist."})
}

func (f *fakeCloudflare) handleDelete(w http.ResponseWriter, zoneID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := f.records[zoneID]
	for i := range records {
		if records[i].ID == id {
			f.records[zoneID] = append(records[:i:i], records[i+1:]...)
			writeEnvelope(w, http.StatusOK, map[string]string{"id": id}, nil)
			return
		}
	}
	writeEnvelope(w, http.StatusNotFound, nil, nil, cfError{Code: 81044, Message: "Record does not exist."})
}

func (f *fakeCloudflare) stored(zoneID string) []cf.DNSRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cf.DNSRecord{}, f.records[zoneID]...)
}

func (f *fakeCloudflare) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}
