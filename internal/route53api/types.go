// Package route53api holds the Route 53 REST (2013-04-01) wire documents and
// their XML codec.
package route53api

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// Namespace is the XML namespace of every 2013-04-01 document.
const Namespace = "https://route53.amazonaws.com/doc/2013-04-01/"

// APIVersion prefixes every request path.
const APIVersion = "2013-04-01"

type HostedZoneConfig struct {
	Comment     string `xml:"Comment,omitempty"`
	PrivateZone bool   `xml:"PrivateZone"`
}

type HostedZone struct {
	ID                     string            `xml:"Id"`
	Name                   string            `xml:"Name"`
	CallerReference        string            `xml:"CallerReference,omitempty"`
	Config                 *HostedZoneConfig `xml:"Config,omitempty"`
	ResourceRecordSetCount int64             `xml:"ResourceRecordSetCount,omitempty"`
}

// ShortID strips the "/hostedzone/" prefix Route 53 puts on zone ids.
func (z HostedZone) ShortID() string {
	return ShortZoneID(z.ID)
}

// ShortZoneID returns id without any "/hostedzone/" prefix.
func ShortZoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}

type ListHostedZonesResponse struct {
	XMLName     xml.Name     `xml:"ListHostedZonesResponse"`
	HostedZones []HostedZone `xml:"HostedZones>HostedZone"`
	Marker      string       `xml:"Marker,omitempty"`
	IsTruncated bool         `xml:"IsTruncated"`
	NextMarker  string       `xml:"NextMarker,omitempty"`
	MaxItems    string       `xml:"MaxItems,omitempty"`
}

type ResourceRecord struct {
	Value string `xml:"Value"`
}

// ResourceRecords is the <ResourceRecords> list. Alias sets must not carry
// the element at all, so it is omitted when empty.
type ResourceRecords []ResourceRecord

func (rr ResourceRecords) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, r := range rr {
		if err := e.EncodeElement(r, xml.StartElement{Name: xml.Name{Local: "ResourceRecord"}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func (rr *ResourceRecords) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var wrapper struct {
		Items []ResourceRecord `xml:"ResourceRecord"`
	}
	if err := d.DecodeElement(&wrapper, &start); err != nil {
		return err
	}
	*rr = wrapper.Items
	return nil
}

type AliasTarget struct {
	HostedZoneID         string `xml:"HostedZoneId"`
	DNSName              string `xml:"DNSName"`
	EvaluateTargetHealth bool   `xml:"EvaluateTargetHealth"`
}

// ResourceRecordSet is either a plain value set or an alias. Routing policy
// fields other than SetIdentifier, Weight and Region are not modelled.
type ResourceRecordSet struct {
	Name            string          `xml:"Name"`
	Type            types.RRType    `xml:"Type"`
	SetIdentifier   string          `xml:"SetIdentifier,omitempty"`
	Weight          *int64          `xml:"Weight,omitempty"`
	Region          string          `xml:"Region,omitempty"`
	TTL             *int64          `xml:"TTL,omitempty"`
	ResourceRecords ResourceRecords `xml:"ResourceRecords,omitempty"`
	AliasTarget     *AliasTarget    `xml:"AliasTarget,omitempty"`
	HealthCheckID   string          `xml:"HealthCheckId,omitempty"`
}

// Values returns the plain record values in order.
func (s ResourceRecordSet) Values() []string {
	out := make([]string, 0, len(s.ResourceRecords))
	for _, rr := range s.ResourceRecords {
		out = append(out, rr.Value)
	}
	return out
}

// IsAlias reports whether the set points at an alias target.
func (s ResourceRecordSet) IsAlias() bool {
	return s.AliasTarget != nil
}

type ListResourceRecordSetsResponse struct {
	XMLName              xml.Name            `xml:"ListResourceRecordSetsResponse"`
	ResourceRecordSets   []ResourceRecordSet `xml:"ResourceRecordSets>ResourceRecordSet"`
	IsTruncated          bool                `xml:"IsTruncated"`
	NextRecordName       string              `xml:"NextRecordName,omitempty"`
	NextRecordType       types.RRType        `xml:"NextRecordType,omitempty"`
	NextRecordIdentifier string              `xml:"NextRecordIdentifier,omitempty"`
	MaxItems             string              `xml:"MaxItems,omitempty"`
}

type Change struct {
	Action            types.ChangeAction `xml:"Action"`
	ResourceRecordSet ResourceRecordSet  `xml:"ResourceRecordSet"`
}

type ChangeBatch struct {
	Comment string   `xml:"Comment,omitempty"`
	Changes []Change `xml:"Changes>Change"`
}

type ChangeResourceRecordSetsRequest struct {
	XMLName     xml.Name    `xml:"ChangeResourceRecordSetsRequest"`
	Xmlns       string      `xml:"xmlns,attr"`
	ChangeBatch ChangeBatch `xml:"ChangeBatch"`
}

// NewChangeRequest wraps changes in a request document with the API namespace.
func NewChangeRequest(comment string, changes ...Change) ChangeResourceRecordSetsRequest {
	return ChangeResourceRecordSetsRequest{
		Xmlns:       Namespace,
		ChangeBatch: ChangeBatch{Comment: comment, Changes: changes},
	}
}

type ChangeInfo struct {
	ID          string             `xml:"Id"`
	Status      types.ChangeStatus `xml:"Status"`
	SubmittedAt time.Time          `xml:"SubmittedAt"`
	Comment     string             `xml:"Comment,omitempty"`
}

type ChangeResourceRecordSetsResponse struct {
	XMLName    xml.Name   `xml:"ChangeResourceRecordSetsResponse"`
	ChangeInfo ChangeInfo `xml:"ChangeInfo"`
}

type ErrorDetail struct {
	Type    string `xml:"Type"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// ErrorResponse is the body of a non-2xx reply.
type ErrorResponse struct {
	XMLName   xml.Name    `xml:"ErrorResponse"`
	Error     ErrorDetail `xml:"Error"`
	RequestID string      `xml:"RequestId"`
}

// InvalidChangeBatch is the body Route 53 returns when a change batch is
// rejected, for example a DELETE of a set that does not exist.
type InvalidChangeBatch struct {
	XMLName   xml.Name `xml:"InvalidChangeBatch"`
	Xmlns     string   `xml:"xmlns,attr,omitempty"`
	Messages  []string `xml:"Messages>Message"`
	RequestID string   `xml:"RequestId,omitempty"`
}
