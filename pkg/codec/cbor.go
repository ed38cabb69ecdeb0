package codec

import (
	"io"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborOnce sync.Once
	cborEnc  cbor.EncMode
	cborDec  cbor.DecMode
)

func cborModes() (cbor.EncMode, cbor.DecMode) {
	cborOnce.Do(func() {
		var err error
		cborEnc, err = cbor.EncOptions{
			Time:    cbor.TimeRFC3339,
			TimeTag: cbor.EncTagRequired,
		}.EncMode()
		if err != nil {
			panic(err)
		}

		cborDec, err = cbor.DecOptions{
			TimeTagToAny:   cbor.TimeTagToTime,
			DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		}.DecMode()
		if err != nil {
			panic(err)
		}
	})
	return cborEnc, cborDec
}

type CborMarshaler struct{}

func (CborMarshaler) Marshal(v any) ([]byte, error) {
	em, _ := cborModes()
	return em.Marshal(v)
}

func (CborMarshaler) NewEncoder(w io.Writer) Encoder {
	em, _ := cborModes()
	return em.NewEncoder(w)
}

type CborUnmarshaler struct{}

func (CborUnmarshaler) Unmarshal(data []byte, dst any) error {
	_, dm := cborModes()
	return dm.Unmarshal(data, dst)
}

func (CborUnmarshaler) NewDecoder(r io.Reader) Decoder {
	_, dm := cborModes()
	return dm.NewDecoder(r)
}
