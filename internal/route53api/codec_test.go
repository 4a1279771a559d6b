package route53api

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listZonesXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListHostedZonesResponse xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <HostedZones>
    <HostedZone>
      <Id>/hostedzone/Z1D633PJN98FT9</Id>
      <Name>example.com.</Name>
      <CallerReference>ref-1</CallerReference>
      <Config><Comment>main</Comment><PrivateZone>false</PrivateZone></Config>
      <ResourceRecordSetCount>17</ResourceRecordSetCount>
    </HostedZone>
    <HostedZone>
      <Id>/hostedzone/Z2</Id>
      <Name>example.org.</Name>
    </HostedZone>
  </HostedZones>
  <IsTruncated>true</IsTruncated>
  <NextMarker>Z3</NextMarker>
  <MaxItems>100</MaxItems>
</ListHostedZonesResponse>`

const listRecordsXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListResourceRecordSetsResponse xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <ResourceRecordSets>
    <ResourceRecordSet>
      <Name>www.example.com.</Name>
      <Type>A</Type>
      <TTL>300</TTL>
      <ResourceRecords>
        <ResourceRecord><Value>192.0.2.1</Value></ResourceRecord>
        <ResourceRecord><Value>192.0.2.2</Value></ResourceRecord>
      </ResourceRecords>
    </ResourceRecordSet>
    <ResourceRecordSet>
      <Name>cdn.example.com.</Name>
      <Type>A</Type>
      <SetIdentifier>eu</SetIdentifier>
      <AliasTarget>
        <HostedZoneId>Z2FDTNDATAQYW2</HostedZoneId>
        <DNSName>d111111abcdef8.cloudfront.net.</DNSName>
        <EvaluateTargetHealth>false</EvaluateTargetHealth>
      </AliasTarget>
    </ResourceRecordSet>
  </ResourceRecordSets>
  <IsTruncated>true</IsTruncated>
  <NextRecordName>x.example.com.</NextRecordName>
  <NextRecordType>TXT</NextRecordType>
  <NextRecordIdentifier>blue</NextRecordIdentifier>
  <MaxItems>300</MaxItems>
</ListResourceRecordSetsResponse>`

const changeResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<ChangeResourceRecordSetsResponse xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <ChangeInfo>
    <Id>/change/C2682N5HXP0BZ4</Id>
    <Status>PENDING</Status>
    <SubmittedAt>2025-10-12T08:30:15.123Z</SubmittedAt>
  </ChangeInfo>
</ChangeResourceRecordSetsResponse>`

const errorXML = `<?xml version="1.0"?>
<ErrorResponse xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <Error>
    <Type>Sender</Type>
    <Code>InvalidChangeBatch</Code>
    <Message>Tried to create resource record set but it already exists</Message>
  </Error>
  <RequestId>b25f48e8-84fd-11e6-80d9-574e0c4664cb</RequestId>
</ErrorResponse>`

const invalidBatchXML = `<?xml version="1.0" encoding="UTF-8"?>
<InvalidChangeBatch xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <Messages>
    <Message>Tried to delete resource record set [name='www.example.com.', type='A'] but it was not found</Message>
    <Message>RRSet with DNS name mail.example.com. is not permitted in zone example.org.</Message>
  </Messages>
  <RequestId>6e6d2f1a-2b3c-4d5e-8f90-123456789abc</RequestId>
</InvalidChangeBatch>`

func TestUnmarshal_ListHostedZones(t *testing.T) {
	var resp ListHostedZonesResponse
	require.NoError(t, Unmarshal([]byte(listZonesXML), &resp))

	require.Len(t, resp.HostedZones, 2)
	assert.Equal(t, "Z1D633PJN98FT9", resp.HostedZones[0].ShortID())
	assert.Equal(t, "example.com.", resp.HostedZones[0].Name)
	require.NotNil(t, resp.HostedZones[0].Config)
	assert.Equal(t, "main", resp.HostedZones[0].Config.Comment)
	assert.Equal(t, int64(17), resp.HostedZones[0].ResourceRecordSetCount)
	assert.Nil(t, resp.HostedZones[1].Config)
	assert.True(t, resp.IsTruncated)
	assert.Equal(t, "Z3", resp.NextMarker)
}

func TestUnmarshal_ListResourceRecordSets(t *testing.T) {
	var resp ListResourceRecordSetsResponse
	require.NoError(t, Unmarshal([]byte(listRecordsXML), &resp))

	require.Len(t, resp.ResourceRecordSets, 2)
	plain := resp.ResourceRecordSets[0]
	assert.Equal(t, types.RRTypeA, plain.Type)
	require.NotNil(t, plain.TTL)
	assert.Equal(t, int64(300), *plain.TTL)
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, plain.Values())
	assert.False(t, plain.IsAlias())

	alias := resp.ResourceRecordSets[1]
	assert.True(t, alias.IsAlias())
	assert.Equal(t, "eu", alias.SetIdentifier)
	assert.Nil(t, alias.TTL)
	assert.Empty(t, alias.ResourceRecords)
	assert.Equal(t, "d111111abcdef8.cloudfront.net.", alias.AliasTarget.DNSName)

	assert.True(t, resp.IsTruncated)
	assert.Equal(t, "x.example.com.", resp.NextRecordName)
	assert.Equal(t, types.RRTypeTxt, resp.NextRecordType)
	assert.Equal(t, "blue", resp.NextRecordIdentifier)
}

func TestUnmarshal_WrongRoot(t *testing.T) {
	var resp ListHostedZonesResponse
	err := Unmarshal([]byte(listRecordsXML), &resp)
	assert.Error(t, err)
}

func TestMarshal_ChangeRequest(t *testing.T) {
	req := NewChangeRequest("created by dnsdeck",
		Change{
			Action: types.ChangeActionCreate,
			ResourceRecordSet: ResourceRecordSet{
				Name:            "txt.example.com.",
				Type:            types.RRTypeTxt,
				TTL:             aws.Int64(300),
				ResourceRecords: ResourceRecords{{Value: `"a&b <c>"`}},
			},
		},
	)

	out, err := Marshal(req)
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `<ChangeResourceRecordSetsRequest xmlns="https://route53.amazonaws.com/doc/2013-04-01/">`)
	assert.Contains(t, doc, `<ChangeBatch><Comment>created by dnsdeck</Comment><Changes><Change><Action>CREATE</Action>`)
	assert.Contains(t, doc, `<TTL>300</TTL>`)
	assert.Contains(t, doc, `<ResourceRecords><ResourceRecord><Value>`)
	assert.Contains(t, doc, `a&amp;b &lt;c&gt;`)
	assert.NotContains(t, doc, `a&b`)
	assert.NotContains(t, doc, `SetIdentifier`)
	assert.NotContains(t, doc, `AliasTarget`)

	// The encoded document decodes back to the same batch.
	decoded, err := Decode(out)
	require.NoError(t, err)
	got, ok := decoded.(*ChangeResourceRecordSetsRequest)
	require.True(t, ok)
	require.Len(t, got.ChangeBatch.Changes, 1)
	assert.Equal(t, []string{`"a&b <c>"`}, got.ChangeBatch.Changes[0].ResourceRecordSet.Values())
}

func TestMarshal_AliasOmitsResourceRecords(t *testing.T) {
	req := NewChangeRequest("", Change{
		Action: types.ChangeActionDelete,
		ResourceRecordSet: ResourceRecordSet{
			Name: "cdn.example.com.",
			Type: types.RRTypeA,
			AliasTarget: &AliasTarget{
				HostedZoneID: "Z2FDTNDATAQYW2",
				DNSName:      "d111111abcdef8.cloudfront.net.",
			},
		},
	})
	out, err := Marshal(req)
	require.NoError(t, err)
	doc := string(out)
	assert.NotContains(t, doc, "ResourceRecords")
	assert.NotContains(t, doc, "<TTL>")
	assert.NotContains(t, doc, "<Comment>")
	assert.Contains(t, doc, "<DNSName>d111111abcdef8.cloudfront.net.</DNSName>")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"zones", listZonesXML, &ListHostedZonesResponse{}},
		{"records", listRecordsXML, &ListResourceRecordSetsResponse{}},
		{"change", changeResponseXML, &ChangeResourceRecordSetsResponse{}},
		{"error", errorXML, &ErrorResponse{}},
		{"invalid batch", invalidBatchXML, &InvalidChangeBatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestDecode_ChangeInfo(t *testing.T) {
	got, err := Decode([]byte(changeResponseXML))
	require.NoError(t, err)
	resp := got.(*ChangeResourceRecordSetsResponse)
	assert.Equal(t, "/change/C2682N5HXP0BZ4", resp.ChangeInfo.ID)
	assert.Equal(t, types.ChangeStatusPending, resp.ChangeInfo.Status)
	assert.Equal(t, 2025, resp.ChangeInfo.SubmittedAt.Year())
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"unknown root", `<Something><A>1</A></Something>`},
		{"malformed", `<ListHostedZonesResponse><HostedZones>`},
		{"not xml", `{"result": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte(`<Something/>`))
	assert.ErrorIs(t, err, ErrUnexpectedDocument)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantCode string
		wantMsgs []string
	}{
		{
			name:     "error response",
			in:       errorXML,
			wantCode: "InvalidChangeBatch",
			wantMsgs: []string{"Tried to create resource record set but it already exists"},
		},
		{
			name:     "invalid change batch",
			in:       invalidBatchXML,
			wantCode: "InvalidChangeBatch",
			wantMsgs: []string{
				"Tried to delete resource record set [name='www.example.com.', type='A'] but it was not found",
				"RRSet with DNS name mail.example.com. is not permitted in zone example.org.",
			},
		},
		{
			name:     "other document",
			in:       `<Oops xmlns:aws="urn:x"><aws:Message> throttled </aws:Message></Oops>`,
			wantMsgs: []string{"throttled"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseError([]byte(tt.in))
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsgs, got.Messages)
		})
	}

	for _, in := range []string{"Service Unavailable", "", `<Oops><Detail>x</Detail></Oops>`} {
		_, ok := ParseError([]byte(in))
		assert.False(t, ok, "input %q", in)
	}
}

func TestShortZoneID(t *testing.T) {
	assert.Equal(t, "Z1", ShortZoneID("/hostedzone/Z1"))
	assert.Equal(t, "Z1", ShortZoneID("Z1"))
}
