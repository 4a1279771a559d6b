package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"k8s.io/client-go/util/flowcontrol"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/secrets"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	TokenEnv       = "CLOUDFLARE_API_TOKEN"

	zonesPerPage   = 50
	recordsPerPage = 100
	defaultQPS     = 4
)

func init() {
	dns.Register(string(dns.KindCloudflare), func(deps dns.Deps, settings map[string]string) (dns.Provider, error) {
		return New(deps, settings)
	})
}

// Provider implements dns.Provider for the Cloudflare v4 API.
type Provider struct {
	baseURL string
	creds   secrets.Store
	client  *http.Client
	limiter flowcontrol.RateLimiter
	log     logr.Logger
}

// New creates a Cloudflare DNS provider from the given settings map.
// Optional settings: base_url (default the public API), qps (default 4),
// credential_source and its options (see secrets.Open; the env source reads
// CLOUDFLARE_API_TOKEN unless token_env says otherwise).
func New(deps dns.Deps, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("cloudflare: invalid base_url %q: %w", baseURL, err)
	}

	qps := float64(defaultQPS)
	if v := settings["qps"]; v != "" {
		parsed, err := strconv.ParseFloat(v, 32)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("cloudflare: invalid qps %q", v)
		}
		qps = parsed
	}

	creds := deps.Credentials
	if creds == nil {
		s, err := secrets.Open(settings, string(dns.KindCloudflare), secrets.EnvStore{TokenVar: TokenEnv})
		if err != nil {
			return nil, fmt.Errorf("cloudflare: %w", err)
		}
		creds = s
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  client,
		limiter: flowcontrol.NewTokenBucketRateLimiter(float32(qps), max(1, int(qps))),
		log:     deps.Log,
	}, nil
}

func (p *Provider) Kind() dns.Kind { return dns.KindCloudflare }

// Connected reports whether an API token is available.
func (p *Provider) Connected() bool {
	_, err := secrets.BearerToken(p.creds)
	return err == nil
}

// envelope is the v4 response wrapper.
type envelope struct {
	cf.Response
	Result     json.RawMessage `json:"result"`
	ResultInfo *cf.ResultInfo  `json:"result_info"`
}

func (p *Provider) fail(kind dns.ErrorKind, op string, cause error) *dns.Error {
	return dns.NewError(dns.KindCloudflare, kind, op, cause)
}

// doRequest executes one API call and unwraps the envelope into out. The
// token is read right before the call and never kept.
func (p *Provider) doRequest(ctx context.Context, op, method, path string, query url.Values, body, out any) (*cf.ResultInfo, error) {
	token, err := secrets.BearerToken(p.creds)
	if err != nil {
		return nil, p.fail(dns.ErrorKindMissingCredential, op, err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, p.fail(dns.ErrorKindEncoding, op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, p.fail(dns.ErrorKindEncoding, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, p.fail(dns.ErrorKindTransport, op, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(dns.ErrorKindTransport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.fail(dns.ErrorKindTransport, op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && len(env.Errors) > 0 {
			return nil, p.fail(dns.ErrorKindProviderRejected, op, nil).
				WithStatusCode(resp.StatusCode).
				WithMessages(messages(env.Errors)...)
		}
		return nil, p.fail(dns.ErrorKindHTTPStatus, op, nil).WithStatusCode(resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, p.fail(dns.ErrorKindDecoding, op, decodeErr)
	}
	if !env.Success {
		return nil, p.fail(dns.ErrorKindProviderRejected, op, nil).
			WithStatusCode(resp.StatusCode).
			WithMessages(messages(env.Errors)...)
	}

	if out != nil && len(env.Result) > 0 && string(env.Result) != "null" {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return nil, p.fail(dns.ErrorKindDecoding, op, err)
		}
	}
	return env.ResultInfo, nil
}

func messages(infos []cf.ResponseInfo) []string {
	return lo.Map(infos, func(i cf.ResponseInfo, _ int) string {
		return fmt.Sprintf("%d: %s", i.Code, i.Message)
	})
}

// listAll walks page/per_page pagination until the reported page reaches
// total_pages. A response without result_info is a single page.
func listAll[T any](ctx context.Context, p *Provider, op, path string, query url.Values, perPage int) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))

		var items []T
		info, err := p.doRequest(ctx, op, http.MethodGet, path, q, nil, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		p.log.V(1).Info("fetched page", "path", path, "page", page, "items", len(items))

		if info == nil || info.TotalPages == 0 || len(items) == 0 {
			break
		}
		current := info.Page
		if current == 0 {
			current = page
		}
		if current >= info.TotalPages {
			break
		}
		page = current
	}
	return all, nil
}

// ListZones lists every zone the token can see.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	return p.ListZonesByName(ctx, "")
}

// ListZonesByName lists zones, filtered by exact name when name is set.
func (p *Provider) ListZonesByName(ctx context.Context, name string) ([]dns.Zone, error) {
	p.log.V(1).Info("listing zones", "name", name)
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	zones, err := listAll[cf.Zone](ctx, p, "list zones", "/zones", query, zonesPerPage)
	if err != nil {
		return nil, err
	}
	return lo.Map(zones, func(z cf.Zone, _ int) dns.Zone {
		return dns.NewZone(dns.KindCloudflare, z.ID, z.Name)
	}), nil
}

func (p *Provider) ListRecords(ctx context.Context, zone dns.Zone) ([]dns.Record, error) {
	p.log.V(1).Info("listing records", "zone", zone.Name)
	records, err := listAll[cf.DNSRecord](ctx, p, "list records", recordsPath(zone), nil, recordsPerPage)
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r cf.DNSRecord, _ int) dns.Record {
		return dns.NewCloudflareRecord(r)
	}), nil
}

func (p *Provider) CreateRecord(ctx context.Context, zone dns.Zone, req dns.CreateRecordRequest) (dns.Record, error) {
	if err := req.Validate(); err != nil {
		return dns.Record{}, dns.ForProvider(err, dns.KindCloudflare)
	}
	p.log.Info("creating record", "zone", zone.Name, "name", req.Name, "type", req.Type)

	var created cf.DNSRecord
	if _, err := p.doRequest(ctx, "create record", http.MethodPost, recordsPath(zone), nil, CreatePayload(req), &created); err != nil {
		return dns.Record{}, err
	}
	p.log.Info("record created", "id", created.ID)
	return dns.NewCloudflareRecord(created), nil
}

func (p *Provider) UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, req dns.UpdateRecordRequest) (dns.Record, error) {
	if record.Provider() != dns.KindCloudflare {
		return dns.Record{}, dns.ForProvider(dns.InvalidRequestf("record %q is not a Cloudflare record", record.ID()), dns.KindCloudflare)
	}
	if err := req.Validate(record.Type()); err != nil {
		return dns.Record{}, dns.ForProvider(err, dns.KindCloudflare)
	}
	p.log.Info("updating record", "zone", zone.Name, "id", record.ID(), "name", record.Name())

	var updated cf.DNSRecord
	if _, err := p.doRequest(ctx, "update record", http.MethodPatch, recordPath(zone, record), nil, UpdatePayload(req), &updated); err != nil {
		return dns.Record{}, err
	}
	p.log.Info("record updated", "id", updated.ID)
	return dns.NewCloudflareRecord(updated), nil
}

func (p *Provider) DeleteRecord(ctx context.Context, zone dns.Zone, record dns.Record) error {
	if record.Provider() != dns.KindCloudflare {
		return dns.ForProvider(dns.InvalidRequestf("record %q is not a Cloudflare record", record.ID()), dns.KindCloudflare)
	}
	p.log.Info("deleting record", "zone", zone.Name, "id", record.ID(), "name", record.Name())

	if _, err := p.doRequest(ctx, "delete record", http.MethodDelete, recordPath(zone, record), nil, nil, nil); err != nil {
		return err
	}
	p.log.Info("record deleted", "id", record.ID())
	return nil
}

func recordsPath(zone dns.Zone) string {
	return "/zones/" + url.PathEscape(zone.ID) + "/dns_records"
}

func recordPath(zone dns.Zone, record dns.Record) string {
	return recordsPath(zone) + "/" + url.PathEscape(record.ID())
}
