// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package export builds the session export: the encoded bundle of credential
// fragments handed back to the user so the linked session can be restored.
package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/fxamacker/cbor/v2"
)

// Format selects the structured serialization inside the base64 envelope.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrEmptyBundle   = errors.New("export bundle has no fragments")
	ErrMalformed     = errors.New("malformed export blob")
)

// Bundle is the decoded form of a session export.
type Bundle struct {
	SessionID string
	CreatedAt time.Time
	Files     []ports.Fragment
}

type jsonBundle struct {
	SessionID string     `json:"sessionId"`
	CreatedAt time.Time  `json:"createdAt"`
	Files     []jsonFile `json:"files"`
}

// Fragments that are valid JSON are embedded verbatim; everything else is
// carried as base64 and flagged through Encoding.
type jsonFile struct {
	Name     string          `json:"name"`
	Content  json.RawMessage `json:"content"`
	Encoding string          `json:"encoding,omitempty"`
}

type cborBundle struct {
	SessionID string     `cbor:"sessionId"`
	CreatedAt int64      `cbor:"createdAt"` // unix milliseconds
	Files     []cborFile `cbor:"files"`
}

type cborFile struct {
	Name    string `cbor:"name"`
	Content []byte `cbor:"content"`
}

const encodingBase64 = "base64"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("export: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseFormat validates a configured format name. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Codec turns a Bundle into a single transportable text blob.
type Codec struct {
	format Format
}

func NewCodec(format Format) (*Codec, error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	return &Codec{format: f}, nil
}

func (c *Codec) Format() Format { return c.format }

// Encode serializes b and wraps it in standard base64.
func (c *Codec) Encode(b Bundle) (string, error) {
	if len(b.Files) == 0 {
		return "", ErrEmptyBundle
	}

	var (
		raw []byte
		err error
	)
	switch c.format {
	case FormatCBOR:
		raw, err = encodeCBOR(b)
	default:
		raw, err = encodeJSON(b)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s export: %w", c.format, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func encodeJSON(b Bundle) ([]byte, error) {
	out := jsonBundle{
		SessionID: b.SessionID,
		CreatedAt: b.CreatedAt.UTC(),
		Files:     make([]jsonFile, 0, len(b.Files)),
	}
	for _, f := range b.Files {
		jf := jsonFile{Name: f.Name}
		trimmed := bytes.TrimSpace(f.Data)
		if len(trimmed) > 0 && json.Valid(trimmed) {
			jf.Content = json.RawMessage(trimmed)
		} else {
			enc, _ := json.Marshal(base64.StdEncoding.EncodeToString(f.Data))
			jf.Content = enc
			jf.Encoding = encodingBase64
		}
		out.Files = append(out.Files, jf)
	}
	return json.Marshal(out)
}

func encodeCBOR(b Bundle) ([]byte, error) {
	out := cborBundle{
		SessionID: b.SessionID,
		CreatedAt: b.CreatedAt.UnixMilli(),
		Files:     make([]cborFile, 0, len(b.Files)),
	}
	for _, f := range b.Files {
		out.Files = append(out.Files, cborFile{Name: f.Name, Content: f.Data})
	}
	return encMode.Marshal(out)
}

// Decode reverses Encode for either format. JSON blobs are recognised by
// their leading brace; anything else is decoded as CBOR.
func Decode(blob string) (Bundle, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) == 0 {
		return Bundle{}, ErrMalformed
	}
	if raw[0] == '{' {
		return decodeJSON(raw)
	}
	return decodeCBOR(raw)
}

func decodeJSON(raw []byte) (Bundle, error) {
	var in jsonBundle
	if err := json.Unmarshal(raw, &in); err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	b := Bundle{SessionID: in.SessionID, CreatedAt: in.CreatedAt}
	for _, f := range in.Files {
		if f.Encoding == encodingBase64 {
			var s string
			if err := json.Unmarshal(f.Content, &s); err != nil {
				return Bundle{}, fmt.Errorf("%w: fragment %q: %w", ErrMalformed, f.Name, err)
			}
			data, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Bundle{}, fmt.Errorf("%w: fragment %q: %w", ErrMalformed, f.Name, err)
			}
			b.Files = append(b.Files, ports.Fragment{Name: f.Name, Data: data})
			continue
		}
		b.Files = append(b.Files, ports.Fragment{Name: f.Name, Data: []byte(f.Content)})
	}
	return b, nil
}

func decodeCBOR(raw []byte) (Bundle, error) {
	var in cborBundle
	if err := decMode.Unmarshal(raw, &in); err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	b := Bundle{SessionID: in.SessionID, CreatedAt: time.UnixMilli(in.CreatedAt).UTC()}
	for _, f := range in.Files {
		b.Files = append(b.Files, ports.Fragment{Name: f.Name, Data: f.Content})
	}
	return b, nil
}
