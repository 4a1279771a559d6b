// Package aggregator fans requests out across the configured DNS providers
// and merges their results.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
)

// Warning records a provider whose listing failed during a refresh.
type Warning struct {
	Provider dns.Kind
	Err      error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Provider, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Result is the merged outcome of a refresh.
type Result struct {
	Zones    []dns.Zone
	Warnings []Warning
	// Skipped lists providers that were not connected.
	Skipped []dns.Kind
}

// Err combines the warnings into one error, or nil when there are none.
func (r Result) Err() error {
	return utilerrors.NewAggregate(lo.Map(r.Warnings, func(w Warning, _ int) error { return w }))
}

// Aggregator holds the configured providers, at most one per kind.
type Aggregator struct {
	providers []dns.Provider
	log       logr.Logger

	// ListBackoff paces retries of zone listings after transient failures.
	// Mutations are never retried.
	ListBackoff wait.Backoff
}

func New(log logr.Logger, providers ...dns.Provider) (*Aggregator, error) {
	seen := make(map[dns.Kind]bool, len(providers))
	for _, p := range providers {
		if seen[p.Kind()] {
			return nil, fmt.Errorf("aggregator: provider %q configured twice", p.Kind())
		}
		seen[p.Kind()] = true
	}
	return &Aggregator{
		providers:   providers,
		log:         log,
		ListBackoff: retry.DefaultRetry,
	}, nil
}

// Providers returns the configured providers in configuration order.
func (a *Aggregator) Providers() []dns.Provider {
	return slices.Clone(a.providers)
}

// Provider returns the provider of the given kind.
func (a *Aggregator) Provider(kind dns.Kind) (dns.Provider, error) {
	p, ok := lo.Find(a.providers, func(p dns.Provider) bool { return p.Kind() == kind })
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", kind)
	}
	return p, nil
}

// RefreshZones lists the zones of every connected provider concurrently.
// Providers without credentials are skipped. A provider that fails is
// recorded as a warning and never aborts the others. Zones are sorted
// case-insensitively by name, then by key.
func (a *Aggregator) RefreshZones(ctx context.Context) Result {
	type slot struct {
		zones   []dns.Zone
		err     error
		skipped bool
	}
	slots := make([]slot, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		if !p.Connected() {
			a.log.V(1).Info("skipping provider without credentials", "provider", p.Kind())
			slots[i].skipped = true
			continue
		}
		g.Go(func() error {
			zones, err := a.listZones(ctx, p)
			slots[i] = slot{zones: zones, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, s := range slots {
		kind := a.providers[i].Kind()
		switch {
		case s.skipped:
			res.Skipped = append(res.Skipped, kind)
		case s.err != nil:
			a.log.Error(s.err, "listing zones failed", "provider", kind)
			res.Warnings = append(res.Warnings, Warning{Provider: kind, Err: s.err})
		default:
			res.Zones = append(res.Zones, s.zones...)
		}
	}
	SortZones(res.Zones)
	a.log.Info("zones refreshed", "zones", len(res.Zones), "warnings", len(res.Warnings), "skipped", len(res.Skipped))
	return res
}

func (a *Aggregator) listZones(ctx context.Context, p dns.Provider) ([]dns.Zone, error) {
	var zones []dns.Zone
	err := retry.OnError(a.ListBackoff, retriable, func() error {
		var err error
		zones, err = p.ListZones(ctx)
		return err
	})
	return zones, err
}

// retriable reports whether a listing may be attempted again: transport
// failures other than cancellation, and throttling or server-side statuses.
func retriable(err error) bool {
	var e *dns.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case dns.ErrorKindTransport:
		return !errors.Is(e.Err, context.Canceled)
	case dns.ErrorKindHTTPStatus, dns.ErrorKindProviderRejected:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// SortZones orders zones by display name, ignoring case, with the zone key
// breaking ties.
func SortZones(zones []dns.Zone) {
	c := collate.New(language.Und, collate.IgnoreCase)
	slices.SortStableFunc(zones, func(x, y dns.Zone) int {
		if n := c.CompareString(x.Name, y.Name); n != 0 {
			return n
		}
		return strings.Compare(x.Key(), y.Key())
	})
}

// SortRecords orders records by name, ignoring case, then by type.
func SortRecords(records []dns.Record) {
	c := collate.New(language.Und, collate.IgnoreCase)
	slices.SortStableFunc(records, func(x, y dns.Record) int {
		if n := c.CompareString(x.Name(), y.Name()); n != 0 {
			return n
		}
		return strings.Compare(x.Type(), y.Type())
	})
}

// ListZones lists the zones of one provider.
func (a *Aggregator) ListZones(ctx context.Context, kind dns.Kind) ([]dns.Zone, error) {
	p, err := a.Provider(kind)
	if err != nil {
		return nil, err
	}
	zones, err := a.listZones(ctx, p)
	if err != nil {
		return nil, err
	}
	SortZones(zones)
	return zones, nil
}

// ListRecords lists the records of zone, sorted by name.
func (a *Aggregator) ListRecords(ctx context.Context, zone dns.Zone) ([]dns.Record, error) {
	p, err := a.Provider(zone.Provider)
	if err != nil {
		return nil, err
	}
	records, err := p.ListRecords(ctx, zone)
	if err != nil {
		return nil, err
	}
	SortRecords(records)
	return records, nil
}

func (a *Aggregator) CreateRecord(ctx context.Context, zone dns.Zone, req dns.CreateRecordRequest) (dns.Record, error) {
	p, err := a.Provider(zone.Provider)
	if err != nil {
		return dns.Record{}, err
	}
	return p.CreateRecord(ctx, zone, req)
}

// UpdateRecord is attempted exactly once.
func (a *Aggregator) UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, req dns.UpdateRecordRequest) (dns.Record, error) {
	p, err := a.Provider(zone.Provider)
	if err != nil {
		return dns.Record{}, err
	}
	return p.UpdateRecord(ctx, zone, record, req)
}

func (a *Aggregator) DeleteRecord(ctx context.Context, zone dns.Zone, record dns.Record) error {
	p, err := a.Provider(zone.Provider)
	if err != nil {
		return err
	}
	return p.DeleteRecord(ctx, zone, record)
}

// DeleteRecords deletes each record independently, in order. It returns the
// aggregate of the failures, or nil when every delete succeeded.
func (a *Aggregator) DeleteRecords(ctx context.Context, zone dns.Zone, records []dns.Record) error {
	p, err := a.Provider(zone.Provider)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.DeleteRecord(ctx, zone, r); err != nil {
			a.log.Error(err, "deleting record failed", "zone", zone.Name, "id", r.ID())
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Name(), r.Type(), err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// FindZone resolves the most specific zone for hostname among zones.
func FindZone(zones []dns.Zone, hostname string) (dns.Zone, error) {
	z, ok := dns.MatchZone(zones, hostname)
	if !ok {
		return dns.Zone{}, fmt.Errorf("no zone found for %q", hostname)
	}
	return z, nil
}
