package cache

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// Never is the expiration stored for entries without a ttl.
const Never int64 = 9999999999

// Entry is a stored value with its absolute expiration (Unix seconds).
type Entry[V any] struct {
	Key       string `cbor:"key" json:"key"`
	ExpiresAt int64  `cbor:"ttl" json:"ttl"`
	Value     V      `cbor:"value" json:"value"`
}

// Expired reports whether the entry is stale at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return e.ExpiresAt < now.Unix()
}

// Codec turns entries into bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// CBOR is the default codec.
	CBOR Codec = cborCodec{}
	// JSON stores entries as readable JSON documents.
	JSON Codec = jsonCodec{}
)

// CodecByName returns the codec registered under name ("cbor" or "json").
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cbor":
		return CBOR, nil
	case "json":
		return JSON, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// cborDecMode decodes untyped maps as map[string]any so values stored under
// V = any look like their JSON counterparts.
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

type cborCodec struct{}

func (cborCodec) Name() string                       { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cborDecMode.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
