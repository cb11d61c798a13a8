// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package export

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() Bundle {
	return Bundle{
		SessionID: "01HZX3K9Q2W8T5Y7N4M6P0R1S2",
		CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Files: []ports.Fragment{
			{Name: "creds.json", Data: []byte(`{"me":{"id":"94712345678"},"registered":true}`)},
			{Name: "pre-key-1.bin", Data: []byte{0x00, 0xff, 0x10, 0x80}},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatCBOR} {
		t.Run(string(format), func(t *testing.T) {
			c, err := NewCodec(format)
			require.NoError(t, err)

			blob, err := c.Encode(sampleBundle())
			require.NoError(t, err)
			_, err = base64.StdEncoding.DecodeString(blob)
			require.NoError(t, err, "blob must be plain base64")

			got, err := Decode(blob)
			require.NoError(t, err)
			if diff := cmp.Diff(sampleBundle(), got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodec_JSONEmbedsJSONFragments(t *testing.T) {
	c, err := NewCodec(FormatJSON)
	require.NoError(t, err)
	blob, err := c.Encode(sampleBundle())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "01HZX3K9Q2W8T5Y7N4M6P0R1S2", doc["sessionId"])

	files := doc["files"].([]any)
	require.Len(t, files, 2)
	creds := files[0].(map[string]any)
	assert.Equal(t, "creds.json", creds["name"])
	assert.IsType(t, map[string]any{}, creds["content"], "json fragments are embedded, not quoted")
	bin := files[1].(map[string]any)
	assert.Equal(t, "base64", bin["encoding"])
}

func TestCodec_Errors(t *testing.T) {
	_, err := NewCodec("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, c.Format())

	_, err = c.Encode(Bundle{SessionID: "x"})
	assert.ErrorIs(t, err, ErrEmptyBundle)

	_, err = Decode("%%% not base64")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(base64.StdEncoding.EncodeToString([]byte("{broken")))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMessage(t *testing.T) {
	msg := Message("acme", "sess-1", "QUJD")
	assert.True(t, strings.HasPrefix(msg, "*ACME session export*"))
	assert.Contains(t, msg, "Session ID: sess-1")
	assert.Contains(t, msg, "QUJD")
	assert.Contains(t, msg, "Never share it")

	assert.Contains(t, Message("", "s", "b"), "WEB-PAIR")
}
