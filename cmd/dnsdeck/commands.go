package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/aggregator"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
)

// zoneSource is the part of the aggregator the commands need.
type zoneSource interface {
	RefreshZones(ctx context.Context) aggregator.Result
	ListRecords(ctx context.Context, zone dns.Zone) ([]dns.Record, error)
	CreateRecord(ctx context.Context, zone dns.Zone, req dns.CreateRecordRequest) (dns.Record, error)
	UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, req dns.UpdateRecordRequest) (dns.Record, error)
	DeleteRecords(ctx context.Context, zone dns.Zone, records []dns.Record) error
}

func zonesCmd(ctx context.Context, src zoneSource, out io.Writer) error {
	res := src.RefreshZones(ctx)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tID\tNAME")
	for _, z := range res.Zones {
		fmt.Fprintf(w, "%s\t%s\t%s\n", z.Provider, z.ID, z.Name)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, kind := range res.Skipped {
		fmt.Fprintf(out, "skipped %s: no credentials\n", kind)
	}
	return res.Err()
}

func recordsCmd(ctx context.Context, src zoneSource, out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: records <zone>")
	}
	zone, err := resolveZone(ctx, src, args[0])
	if err != nil {
		return err
	}
	records, err := src.ListRecords(ctx, zone)
	if err != nil {
		return err
	}
	return printRecords(out, records)
}

func printRecords(out io.Writer, records []dns.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tTTL\tPROXIED\tPRIORITY\tCONTENT")
	for _, r := range records {
		proxied, priority := "-", "-"
		if p := r.Proxied(); p != nil {
			proxied = strconv.FormatBool(*p)
		}
		if p := r.Priority(); p != nil {
			priority = strconv.Itoa(int(*p))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID(), r.Name(), r.Type(), formatTTL(r.TTL()), proxied, priority, r.Content())
	}
	return w.Flush()
}

func formatTTL(ttl int) string {
	switch ttl {
	case 0:
		return "-"
	case dns.TTLAuto:
		return "auto"
	}
	return strconv.Itoa(ttl)
}

func createCmd(ctx context.Context, src zoneSource, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: create <zone> -name NAME -type TYPE [flags]")
	}
	rf := newRecordFlags("create")
	if err := rf.parse(args[1:]); err != nil {
		return err
	}
	zone, err := resolveZone(ctx, src, args[0])
	if err != nil {
		return err
	}

	created, err := src.CreateRecord(ctx, zone, rf.createRequest())
	if err != nil {
		return err
	}
	return printRecords(out, []dns.Record{created})
}

func updateCmd(ctx context.Context, src zoneSource, out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: update <zone> <record> [flags]")
	}
	rf := newRecordFlags("update")
	if err := rf.parse(args[2:]); err != nil {
		return err
	}
	req := rf.updateRequest()
	if req.IsEmpty() {
		return errors.New("update: no fields to change")
	}

	zone, err := resolveZone(ctx, src, args[0])
	if err != nil {
		return err
	}
	records, err := src.ListRecords(ctx, zone)
	if err != nil {
		return err
	}
	record, err := findRecord(records, args[1])
	if err != nil {
		return err
	}

	updated, err := src.UpdateRecord(ctx, zone, record, req)
	if err != nil {
		return err
	}
	return printRecords(out, []dns.Record{updated})
}

func deleteCmd(ctx context.Context, src zoneSource, out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: delete <zone> <record>...")
	}
	zone, err := resolveZone(ctx, src, args[0])
	if err != nil {
		return err
	}
	records, err := src.ListRecords(ctx, zone)
	if err != nil {
		return err
	}

	targets := make([]dns.Record, 0, len(args)-1)
	for _, ref := range args[1:] {
		r, err := findRecord(records, ref)
		if err != nil {
			return err
		}
		targets = append(targets, r)
	}

	if err := src.DeleteRecords(ctx, zone, targets); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d record(s) from %s\n", len(targets), zone.Name)
	return nil
}

// resolveZone accepts "provider|id", a zone name, or a hostname inside a
// zone.
func resolveZone(ctx context.Context, src zoneSource, ref string) (dns.Zone, error) {
	res := src.RefreshZones(ctx)
	if z, ok := lo.Find(res.Zones, func(z dns.Zone) bool { return z.Key() == ref }); ok {
		return z, nil
	}
	z, err := aggregator.FindZone(res.Zones, ref)
	if err != nil {
		if werr := res.Err(); werr != nil {
			return dns.Zone{}, fmt.Errorf("%w (some providers failed: %v)", err, werr)
		}
		return dns.Zone{}, err
	}
	return z, nil
}

// findRecord matches ref against record ids first, then against names.
func findRecord(records []dns.Record, ref string) (dns.Record, error) {
	if r, ok := lo.Find(records, func(r dns.Record) bool { return r.ID() == ref }); ok {
		return r, nil
	}
	name := strings.TrimSuffix(ref, ".")
	matches := lo.Filter(records, func(r dns.Record, _ int) bool {
		return strings.EqualFold(strings.TrimSuffix(r.Name(), "."), name)
	})
	switch len(matches) {
	case 0:
		return dns.Record{}, fmt.Errorf("no record matches %q", ref)
	case 1:
		return matches[0], nil
	}
	ids := lo.Map(matches, func(r dns.Record, _ int) string { return r.ID() })
	return dns.Record{}, fmt.Errorf("%q matches %d records, use one of the ids: %s", ref, len(matches), strings.Join(ids, ", "))
}

// recordFlags parses the record fields shared by create and update.
type recordFlags struct {
	fs *flag.FlagSet

	name, typ, content, comment string
	ttl                         int
	proxied                     bool
	priority                    uint

	srvService, srvProto, srvTarget string
	srvPriority, srvWeight, srvPort uint

	caaFlags       uint
	caaTag, caaVal string
}

func newRecordFlags(cmd string) *recordFlags {
	rf := &recordFlags{fs: flag.NewFlagSet(cmd, flag.ContinueOnError)}
	fs := rf.fs
	fs.StringVar(&rf.name, "name", "", `record name: relative, "@" for the apex, or fully qualified`)
	fs.StringVar(&rf.typ, "type", "", "record type ("+strings.Join(dns.SupportedTypes, ", ")+")")
	fs.StringVar(&rf.content, "content", "", "record value")
	fs.IntVar(&rf.ttl, "ttl", dns.TTLAuto, "TTL in seconds, 1 for automatic")
	fs.BoolVar(&rf.proxied, "proxied", false, "proxy through Cloudflare (A, AAAA, CNAME)")
	fs.UintVar(&rf.priority, "priority", 0, "MX priority")
	fs.StringVar(&rf.comment, "comment", "", "record or change batch comment")
	fs.StringVar(&rf.srvService, "srv-service", "", `SRV service, e.g. "_sip"`)
	fs.StringVar(&rf.srvProto, "srv-proto", "", `SRV protocol, e.g. "_tcp"`)
	fs.UintVar(&rf.srvPriority, "srv-priority", 0, "SRV priority")
	fs.UintVar(&rf.srvWeight, "srv-weight", 0, "SRV weight")
	fs.UintVar(&rf.srvPort, "srv-port", 0, "SRV port")
	fs.StringVar(&rf.srvTarget, "srv-target", "", "SRV target host")
	fs.UintVar(&rf.caaFlags, "caa-flags", 0, "CAA flags")
	fs.StringVar(&rf.caaTag, "caa-tag", "", "CAA tag (issue, issuewild, iodef)")
	fs.StringVar(&rf.caaVal, "caa-value", "", "CAA value")
	return rf
}

// parse parses args and rejects integer flags that do not fit the wire
// width of their field.
func (rf *recordFlags) parse(args []string) error {
	if err := rf.fs.Parse(args); err != nil {
		return err
	}
	limits := []struct {
		name  string
		value uint
		max   uint
	}{
		{"priority", rf.priority, math.MaxUint16},
		{"srv-priority", rf.srvPriority, math.MaxUint16},
		{"srv-weight", rf.srvWeight, math.MaxUint16},
		{"srv-port", rf.srvPort, math.MaxUint16},
		{"caa-flags", rf.caaFlags, math.MaxUint8},
	}
	for _, l := range limits {
		if l.value > l.max {
			return fmt.Errorf("invalid value %d for flag -%s: must be between 0 and %d", l.value, l.name, l.max)
		}
	}
	return nil
}

// visited returns the names of the flags given on the command line.
func (rf *recordFlags) visited() map[string]bool {
	set := map[string]bool{}
	rf.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (rf *recordFlags) srv(set map[string]bool) *dns.SRVData {
	if !lo.SomeBy(lo.Keys(set), func(k string) bool { return strings.HasPrefix(k, "srv-") }) {
		return nil
	}
	return &dns.SRVData{
		Service:  rf.srvService,
		Proto:    rf.srvProto,
		Priority: uint16(rf.srvPriority),
		Weight:   uint16(rf.srvWeight),
		Port:     uint16(rf.srvPort),
		Target:   rf.srvTarget,
	}
}

func (rf *recordFlags) caa(set map[string]bool) *dns.CAAData {
	if !lo.SomeBy(lo.Keys(set), func(k string) bool { return strings.HasPrefix(k, "caa-") }) {
		return nil
	}
	return &dns.CAAData{Flags: uint8(rf.caaFlags), Tag: rf.caaTag, Value: rf.caaVal}
}

func (rf *recordFlags) createRequest() dns.CreateRecordRequest {
	set := rf.visited()
	req := dns.CreateRecordRequest{
		Name:    rf.name,
		Type:    rf.typ,
		Content: rf.content,
		SRV:     rf.srv(set),
		CAA:     rf.caa(set),
	}
	if set["ttl"] {
		req.TTL = lo.ToPtr(rf.ttl)
	}
	if set["proxied"] {
		req.Proxied = lo.ToPtr(rf.proxied)
	}
	if set["priority"] {
		req.Priority = lo.ToPtr(uint16(rf.priority))
	}
	if set["comment"] {
		req.Comment = lo.ToPtr(rf.comment)
	}
	return req
}

func (rf *recordFlags) updateRequest() dns.UpdateRecordRequest {
	set := rf.visited()
	req := dns.UpdateRecordRequest{
		SRV: rf.srv(set),
		CAA: rf.caa(set),
	}
	if set["name"] {
		req.Name = lo.ToPtr(rf.name)
	}
	if set["type"] {
		req.Type = lo.ToPtr(rf.typ)
	}
	if set["content"] {
		req.Content = lo.ToPtr(rf.content)
	}
	if set["ttl"] {
		req.TTL = lo.ToPtr(rf.ttl)
	}
	if set["proxied"] {
		req.Proxied = lo.ToPtr(rf.proxied)
	}
	if set["priority"] {
		req.Priority = lo.ToPtr(uint16(rf.priority))
	}
	if set["comment"] {
		req.Comment = lo.ToPtr(rf.comment)
	}
	return req
}
