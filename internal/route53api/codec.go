package route53api

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnexpectedDocument is returned when the root element is not one of the
// known response documents.
var ErrUnexpectedDocument = errors.New("route53api: unexpected document")

// Marshal encodes v as an XML document with a declaration header.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("route53api: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. A root element that does not match v's
// XMLName is an error.
func Unmarshal(data []byte, v any) error {
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("route53api: decode: %w", err)
	}
	return nil
}

// RootElement returns the local name of the first element in data.
func RootElement(data []byte) (string, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", fmt.Errorf("route53api: decode: empty document")
		}
		if err != nil {
			return "", fmt.Errorf("route53api: decode: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// Decode picks the document type from the root element and returns a pointer
// to the decoded value.
func Decode(data []byte) (any, error) {
	root, err := RootElement(data)
	if err != nil {
		return nil, err
	}

	var v any
	switch root {
	case "ListHostedZonesResponse":
		v = &ListHostedZonesResponse{}
	case "ListResourceRecordSetsResponse":
		v = &ListResourceRecordSetsResponse{}
	case "ChangeResourceRecordSetsRequest":
		v = &ChangeResourceRecordSetsRequest{}
	case "ChangeResourceRecordSetsResponse":
		v = &ChangeResourceRecordSetsResponse{}
	case "ErrorResponse":
		v = &ErrorResponse{}
	case "InvalidChangeBatch":
		v = &InvalidChangeBatch{}
	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnexpectedDocument, root)
	}
	if err := Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// APIError is the code and messages carried by a non-2xx reply.
type APIError struct {
	Code     string
	Messages []string
}

// ParseError extracts the error code and every <Message> of a non-2xx body.
// ErrorResponse and InvalidChangeBatch documents are decoded by shape; any
// other XML document contributes the text of its Message elements.
func ParseError(data []byte) (APIError, bool) {
	root, err := RootElement(data)
	if err != nil {
		return APIError{}, false
	}

	var out APIError
	switch root {
	case "ErrorResponse":
		var resp ErrorResponse
		if err := xml.Unmarshal(data, &resp); err != nil {
			return APIError{}, false
		}
		out.Code = resp.Error.Code
		if resp.Error.Message != "" {
			out.Messages = []string{resp.Error.Message}
		}
	case "InvalidChangeBatch":
		var resp InvalidChangeBatch
		if err := xml.Unmarshal(data, &resp); err != nil {
			return APIError{}, false
		}
		out.Code = root
		out.Messages = resp.Messages
	default:
		out.Messages = messages(data)
	}
	if out.Code == "" && len(out.Messages) == 0 {
		return APIError{}, false
	}
	return out, true
}

// messages collects the text of every Message element in data, in order.
func messages(data []byte) []string {
	var out []string
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Message" {
			continue
		}
		var text string
		if err := d.DecodeElement(&text, &se); err != nil {
			return out
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
}
