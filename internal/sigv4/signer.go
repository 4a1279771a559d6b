// Package sigv4 implements AWS Signature Version 4 for the Route 53 REST API.
//
// Only the host and x-amz-date headers are signed. The signing key is derived
// from the secret on every call and never retained.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	Algorithm      = "AWS4-HMAC-SHA256"
	SignedHeaders  = "host;x-amz-date"
	TimeFormat     = "20060102T150405Z"
	DateFormat     = "20060102"
	DefaultRegion  = "us-east-1"
	DefaultService = "route53"

	terminator = "aws4_request"
)

// ErrMissingCredentials is returned when the access key or secret is empty.
var ErrMissingCredentials = errors.New("sigv4: missing access key id or secret access key")

// Signer signs HTTP requests in place. The zero value signs for route53 in
// us-east-1 using the wall clock.
type Signer struct {
	Region  string
	Service string
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// New returns a Signer for the global Route 53 endpoint.
func New() *Signer {
	return &Signer{Region: DefaultRegion, Service: DefaultService}
}

func (s *Signer) region() string {
	if s.Region == "" {
		return DefaultRegion
	}
	return s.Region
}

func (s *Signer) service() string {
	if s.Service == "" {
		return DefaultService
	}
	return s.Service
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Sign sets the X-Amz-Date and Authorization headers on req. body must be the
// exact bytes that will be sent; nil means no body.
func (s *Signer) Sign(req *http.Request, body []byte, creds aws.Credentials) error {
	accessKeyID := strings.TrimSpace(creds.AccessKeyID)
	secret := strings.TrimSpace(creds.SecretAccessKey)
	if accessKeyID == "" || secret == "" {
		return ErrMissingCredentials
	}

	t := s.now()
	amzDate := t.Format(TimeFormat)
	dateStamp := t.Format(DateFormat)
	req.Header.Set("X-Amz-Date", amzDate)
	// Temporary credentials need the token present; it is sent but not signed.
	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	canonical := CanonicalRequest(req.Method, req.URL.Path, req.URL.RawQuery, host, amzDate, PayloadHash(body))
	scope := CredentialScope(dateStamp, s.region(), s.service())
	key := DeriveSigningKey(secret, dateStamp, s.region(), s.service())
	signature := hex.EncodeToString(hmacSHA256(key, []byte(StringToSign(amzDate, scope, canonical))))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, accessKeyID, scope, SignedHeaders, signature))
	return nil
}

// CanonicalRequest builds the SigV4 canonical request string.
func CanonicalRequest(method, path, rawQuery, host, amzDate, payloadHash string) string {
	headers := "host:" + strings.TrimSpace(host) + "\n" + "x-amz-date:" + amzDate
	return strings.Join([]string{
		method,
		CanonicalPath(path),
		CanonicalQuery(rawQuery),
		headers,
		"",
		SignedHeaders,
		payloadHash,
	}, "\n")
}

// CanonicalPath percent-encodes p, keeping '/' separators.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	return escape(p, true)
}

// CanonicalQuery re-encodes every key and value of rawQuery and sorts the
// resulting pairs by their encoded form.
func CanonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, item := range strings.Split(rawQuery, "&") {
		if item == "" {
			continue
		}
		k, v, _ := strings.Cut(item, "=")
		pairs = append(pairs, escape(unescape(k), false)+"="+escape(unescape(v), false))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// CredentialScope returns "{date}/{region}/{service}/aws4_request".
func CredentialScope(dateStamp, region, service string) string {
	return strings.Join([]string{dateStamp, region, service, terminator}, "/")
}

// StringToSign returns the SigV4 string to sign for a canonical request.
func StringToSign(amzDate, scope, canonicalRequest string) string {
	return strings.Join([]string{Algorithm, amzDate, scope, hashHex([]byte(canonicalRequest))}, "\n")
}

// DeriveSigningKey runs the HMAC chain date -> region -> service -> aws4_request.
func DeriveSigningKey(secret, dateStamp, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte(terminator))
}

// PayloadHash is the hex SHA-256 of body, or of no bytes when body is nil.
func PayloadHash(body []byte) string {
	return hashHex(body)
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// escape applies RFC 3986 encoding: only A-Z a-z 0-9 - _ . ~ (and '/' when
// keepSlash) pass through.
func escape(s string, keepSlash bool) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}
