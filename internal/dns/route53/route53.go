package route53

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"k8s.io/client-go/util/flowcontrol"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/route53api"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/secrets"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/sigv4"
)

const (
	DefaultEndpoint = "https://route53.amazonaws.com"
	AccessKeyEnv    = "AWS_ACCESS_KEY_ID"
	SecretKeyEnv    = "AWS_SECRET_ACCESS_KEY"
	SessionTokenEnv = "AWS_SESSION_TOKEN"

	// SourceAWSDefault selects the SDK default credential chain.
	SourceAWSDefault = "aws_default"

	zonesPageSize   = 100
	recordsPageSize = 300
	defaultQPS      = 5
)

func init() {
	dns.Register(string(dns.KindRoute53), func(deps dns.Deps, settings map[string]string) (dns.Provider, error) {
		return New(deps, settings)
	})
}

// Provider implements dns.Provider for the Route 53 REST API.
type Provider struct {
	endpoint string
	creds    aws.CredentialsProvider
	signer   *sigv4.Signer
	client   *http.Client
	limiter  flowcontrol.RateLimiter
	log      logr.Logger
}

// New creates a Route 53 DNS provider from the given settings map.
// Optional settings: endpoint, region (signing region, default us-east-1),
// qps (default 5), credential_source. With credential_source "aws_default"
// the SDK chain is used (profile selects a shared config profile); any other
// source is handled by secrets.Open with AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN as the env defaults.
func New(deps dns.Deps, settings map[string]string) (*Provider, error) {
	endpoint := settings["endpoint"]
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("route53: invalid endpoint %q: %w", endpoint, err)
	}

	qps := float64(defaultQPS)
	if v := settings["qps"]; v != "" {
		parsed, err := strconv.ParseFloat(v, 32)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("route53: invalid qps %q", v)
		}
		qps = parsed
	}

	creds, err := credentialsFor(deps, settings)
	if err != nil {
		return nil, err
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	signer := sigv4.New()
	if v := settings["region"]; v != "" {
		signer.Region = v
	}

	return &Provider{
		endpoint: strings.TrimRight(endpoint, "/"),
		creds:    creds,
		signer:   signer,
		client:   client,
		limiter:  flowcontrol.NewTokenBucketRateLimiter(float32(qps), max(1, int(qps))),
		log:      deps.Log,
	}, nil
}

func credentialsFor(deps dns.Deps, settings map[string]string) (aws.CredentialsProvider, error) {
	if deps.Credentials != nil {
		return secrets.AWSCredentials(deps.Credentials), nil
	}
	if settings["credential_source"] == SourceAWSDefault {
		var opts []func(*awsconfig.LoadOptions) error
		if profile := settings["profile"]; profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("route53: loading AWS config: %w", err)
		}
		if cfg.Credentials == nil {
			return nil, fmt.Errorf("route53: AWS config has no credential provider")
		}
		return cfg.Credentials, nil
	}

	store, err := secrets.Open(settings, string(dns.KindRoute53), secrets.EnvStore{
		AccessKeyVar:    AccessKeyEnv,
		SecretKeyVar:    SecretKeyEnv,
		SessionTokenVar: SessionTokenEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("route53: %w", err)
	}
	return secrets.AWSCredentials(store), nil
}

func (p *Provider) Kind() dns.Kind { return dns.KindRoute53 }

// Connected reports whether a complete access key pair can be retrieved.
func (p *Provider) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := p.credentials(ctx, "connect")
	return err == nil
}

func (p *Provider) fail(kind dns.ErrorKind, op string, cause error) *dns.Error {
	return dns.NewError(dns.KindRoute53, kind, op, cause)
}

// credentials retrieves the key pair for one request.
func (p *Provider) credentials(ctx context.Context, op string) (aws.Credentials, error) {
	creds, err := p.creds.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, p.fail(dns.ErrorKindMissingCredential, op, err)
	}
	if strings.TrimSpace(creds.AccessKeyID) == "" || strings.TrimSpace(creds.SecretAccessKey) == "" {
		return aws.Credentials{}, p.fail(dns.ErrorKindMissingCredential, op, sigv4.ErrMissingCredentials)
	}
	return creds, nil
}

// doRequest encodes body, signs and sends the request, and decodes the reply
// into out. Signing happens after rate limiting so the timestamp is fresh.
func (p *Provider) doRequest(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	creds, err := p.credentials(ctx, op)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = route53api.Marshal(body)
		if err != nil {
			return p.fail(dns.ErrorKindEncoding, op, err)
		}
	}

	target := p.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return p.fail(dns.ErrorKindEncoding, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/xml")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return p.fail(dns.ErrorKindTransport, op, err)
	}
	if err := p.signer.Sign(req, payload, creds); err != nil {
		if errors.Is(err, sigv4.ErrMissingCredentials) {
			return p.fail(dns.ErrorKindMissingCredential, op, err)
		}
		return p.fail(dns.ErrorKindEncoding, op, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(dns.ErrorKindTransport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return p.fail(dns.ErrorKindTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if e, ok := route53api.ParseError(data); ok {
			msgs := e.Messages
			if e.Code != "" {
				if len(msgs) == 0 {
					msgs = []string{e.Code}
				} else {
					msgs = lo.Map(msgs, func(m string, _ int) string { return e.Code + ": " + m })
				}
			}
			return p.fail(dns.ErrorKindProviderRejected, op, nil).
				WithStatusCode(resp.StatusCode).
				WithMessages(msgs...)
		}
		return p.fail(dns.ErrorKindHTTPStatus, op, nil).WithStatusCode(resp.StatusCode)
	}

	if out != nil {
		if err := route53api.Unmarshal(data, out); err != nil {
			return p.fail(dns.ErrorKindDecoding, op, err)
		}
	}
	return nil
}

// ListZones follows marker pagination until IsTruncated is false.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	p.log.V(1).Info("listing zones")
	var zones []dns.Zone
	marker := ""
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("maxitems", strconv.Itoa(zonesPageSize))
		if marker != "" {
			q.Set("marker", marker)
		}

		var resp route53api.ListHostedZonesResponse
		if err := p.doRequest(ctx, "list zones", http.MethodGet, "/"+route53api.APIVersion+"/hostedzone", q, nil, &resp); err != nil {
			return nil, err
		}
		for _, z := range resp.HostedZones {
			zones = append(zones, dns.NewZone(dns.KindRoute53, z.ShortID(), z.Name))
		}
		p.log.V(1).Info("fetched page", "path", "hostedzone", "page", page, "items", len(resp.HostedZones))

		if !resp.IsTruncated || resp.NextMarker == "" {
			break
		}
		marker = resp.NextMarker
	}
	return zones, nil
}

// ListRecords follows the name/type/identifier cursor until IsTruncated is
// false.
func (p *Provider) ListRecords(ctx context.Context, zone dns.Zone) ([]dns.Record, error) {
	p.log.V(1).Info("listing records", "zone", zone.Name)
	var records []dns.Record
	var name, identifier string
	var typ types.RRType
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("maxitems", strconv.Itoa(recordsPageSize))
		if name != "" {
			q.Set("name", name)
		}
		if typ != "" {
			q.Set("type", string(typ))
		}
		if identifier != "" {
			q.Set("identifier", identifier)
		}

		var resp route53api.ListResourceRecordSetsResponse
		if err := p.doRequest(ctx, "list records", http.MethodGet, rrsetPath(zone), q, nil, &resp); err != nil {
			return nil, err
		}
		for _, s := range resp.ResourceRecordSets {
			records = append(records, dns.NewRoute53Record(s))
		}
		p.log.V(1).Info("fetched page", "path", "rrset", "page", page, "items", len(resp.ResourceRecordSets))

		if !resp.IsTruncated || resp.NextRecordName == "" {
			break
		}
		name, typ, identifier = resp.NextRecordName, resp.NextRecordType, resp.NextRecordIdentifier
	}
	return records, nil
}

// ChangeResourceRecordSets submits one change batch. Route 53 applies a batch
// as a unit.
func (p *Provider) ChangeResourceRecordSets(ctx context.Context, zone dns.Zone, batch route53api.ChangeResourceRecordSetsRequest) (route53api.ChangeInfo, error) {
	var resp route53api.ChangeResourceRecordSetsResponse
	op := "change record sets"
	if len(batch.ChangeBatch.Changes) == 1 {
		op = strings.ToLower(string(batch.ChangeBatch.Changes[0].Action)) + " record"
	}
	if err := p.doRequest(ctx, op, http.MethodPost, rrsetPath(zone), nil, batch, &resp); err != nil {
		return route53api.ChangeInfo{}, err
	}
	p.log.Info("change submitted", "zone", zone.Name, "change", resp.ChangeInfo.ID, "status", resp.ChangeInfo.Status)
	return resp.ChangeInfo, nil
}

func (p *Provider) CreateRecord(ctx context.Context, zone dns.Zone, req dns.CreateRecordRequest) (dns.Record, error) {
	if err := req.Validate(); err != nil {
		return dns.Record{}, dns.ForProvider(err, dns.KindRoute53)
	}
	set := CreateRecordSet(req, zone.Name)
	p.log.Info("creating record", "zone", zone.Name, "name", set.Name, "type", set.Type)

	batch := route53api.NewChangeRequest(batchComment(req.Comment, "created by dnsdeck"),
		route53api.Change{Action: types.ChangeActionCreate, ResourceRecordSet: set})
	if _, err := p.ChangeResourceRecordSets(ctx, zone, batch); err != nil {
		return dns.Record{}, err
	}
	return dns.NewRoute53Record(set), nil
}

// UpdateRecord replaces the set with DELETE(old) and CREATE(merged) in one
// batch. It is not idempotent: a second submission fails because the old set
// is gone, so callers must not retry it blindly.
func (p *Provider) UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, req dns.UpdateRecordRequest) (dns.Record, error) {
	old, ok := record.Data.(dns.Route53RecordSet)
	if !ok {
		return dns.Record{}, dns.ForProvider(dns.InvalidRequestf("record %q is not a Route 53 record set", record.ID()), dns.KindRoute53)
	}
	if err := req.Validate(record.Type()); err != nil {
		return dns.Record{}, dns.ForProvider(err, dns.KindRoute53)
	}
	merged, err := MergeRecordSet(old.ResourceRecordSet, req, zone.Name)
	if err != nil {
		return dns.Record{}, dns.ForProvider(err, dns.KindRoute53)
	}
	p.log.Info("updating record", "zone", zone.Name, "name", old.Name, "type", old.Type)

	batch := route53api.NewChangeRequest(batchComment(req.Comment, "updated by dnsdeck"),
		route53api.Change{Action: types.ChangeActionDelete, ResourceRecordSet: old.ResourceRecordSet},
		route53api.Change{Action: types.ChangeActionCreate, ResourceRecordSet: merged},
	)
	if _, err := p.ChangeResourceRecordSets(ctx, zone, batch); err != nil {
		return dns.Record{}, err
	}
	return dns.NewRoute53Record(merged), nil
}

func (p *Provider) DeleteRecord(ctx context.Context, zone dns.Zone, record dns.Record) error {
	old, ok := record.Data.(dns.Route53RecordSet)
	if !ok {
		return dns.ForProvider(dns.InvalidRequestf("record %q is not a Route 53 record set", record.ID()), dns.KindRoute53)
	}
	p.log.Info("deleting record", "zone", zone.Name, "name", old.Name, "type", old.Type)

	batch := route53api.NewChangeRequest("deleted by dnsdeck",
		route53api.Change{Action: types.ChangeActionDelete, ResourceRecordSet: old.ResourceRecordSet})
	_, err := p.ChangeResourceRecordSets(ctx, zone, batch)
	return err
}

func rrsetPath(zone dns.Zone) string {
	return "/" + route53api.APIVersion + "/hostedzone/" + url.PathEscape(route53api.ShortZoneID(zone.ID)) + "/rrset"
}
