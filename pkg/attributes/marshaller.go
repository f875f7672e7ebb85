package attributes

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/aretw0/sessionkit/pkg/ports"
)

// Map holds the attributes of one session by name.
type Map map[string]any

// Names returns the attribute names in lexical order.
func (m Map) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

var _ ports.Marshaller[Map] = GobMarshaller{}

// Values decoded from JSON request bodies land in attributes as these types.
func init() {
	gob.Register(time.Time{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// GobMarshaller encodes attribute maps with encoding/gob.
type GobMarshaller struct{}

func (GobMarshaller) Marshal(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobMarshaller) Unmarshal(data []byte) (Map, error) {
	var m Map
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

var timeType = reflect.TypeFor[time.Time]()

// IsImmutable reports whether v cannot be changed in place by whoever reads it,
// so reading it never requires a write back.
func IsImmutable(v any) bool {
	if v == nil {
		return true
	}
	t := reflect.TypeOf(v)
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}
