// Package codec selects the wire encoding used to talk to the block server.
package codec

import (
	"fmt"
	"io"
	"strings"
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}

// Codec pairs a marshaler and unmarshaler with the media type they speak.
type Codec struct {
	Name        string
	ContentType string
	Marshaler
	Unmarshaler
}

const (
	NameJSON = "json"
	NameCBOR = "cbor"

	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

func JSON() Codec {
	return Codec{Name: NameJSON, ContentType: ContentTypeJSON, Marshaler: JSONMarshaler{}, Unmarshaler: JSONUnmarshaler{}}
}

func CBOR() Codec {
	return Codec{Name: NameCBOR, ContentType: ContentTypeCBOR, Marshaler: CborMarshaler{}, Unmarshaler: CborUnmarshaler{}}
}

// ByName returns the codec registered under name. The empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", NameJSON:
		return JSON(), nil
	case NameCBOR:
		return CBOR(), nil
	default:
		return Codec{}, fmt.Errorf("unknown codec %q", name)
	}
}

// ForContentType picks the codec for a response's Content-Type header, falling
// back to def when the header names neither JSON nor CBOR.
func ForContentType(header string, def Codec) Codec {
	mediaType := strings.TrimSpace(strings.ToLower(strings.SplitN(header, ";", 2)[0]))
	switch mediaType {
	case ContentTypeJSON:
		return JSON()
	case ContentTypeCBOR:
		return CBOR()
	default:
		return def
	}
}
