// Package codec encodes event payloads for the wire. JSON is the default
// encoding; CBOR is available for collectors that accept it.
package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec marshals payloads and names their content type.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Decode(r io.Reader, v any) error
}

// Content types understood by ForContentType.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// JSON is the default codec.
var JSON Codec = jsonCodec{}

// CBOR encodes with Core Deterministic Encoding (sorted map keys,
// smallest integer encoding).
var CBOR Codec = newCBORCodec()

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Decode(r io.Reader, v any) error { return json.NewDecoder(r).Decode(v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) ContentType() string { return ContentTypeCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec) Decode(r io.Reader, v any) error { return c.dec.NewDecoder(r).Decode(v) }

// ByName returns the codec for a configuration name: "json" (or "") or
// "cbor".
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}

// ForContentType returns the codec for a request Content-Type header.
// Anything that is not CBOR is treated as JSON.
func ForContentType(contentType string) Codec {
	if contentType == ContentTypeCBOR {
		return CBOR
	}
	return JSON
}
