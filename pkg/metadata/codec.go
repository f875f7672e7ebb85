package metadata

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/sessionkit/pkg/ports"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the replicated entries. Fields holding their default value
// (epoch, DefaultTimeout, zero duration) are not written at all.
const (
	creationTimeField   protowire.Number = 1
	timeoutSecondsField protowire.Number = 2
	timeoutNanosField   protowire.Number = 3

	sinceCreationSecondsField protowire.Number = 1
	sinceCreationNanosField   protowire.Number = 2
	lastAccessSecondsField    protowire.Number = 3
	lastAccessNanosField      protowire.Number = 4
)

// ErrMalformedEntry is returned when replicated bytes cannot be decoded.
var ErrMalformedEntry = errors.New("malformed metadata entry")

var (
	_ ports.Marshaller[*CreationEntry] = CreationMarshaller{}
	_ ports.Marshaller[*AccessEntry]   = AccessMarshaller{}
)

// CreationMarshaller encodes creation entries in protobuf wire format.
type CreationMarshaller struct{}

func (CreationMarshaller) Marshal(e *CreationEntry) ([]byte, error) {
	var b []byte
	if millis := e.CreationTime().UnixMilli(); millis != 0 {
		b = protowire.AppendTag(b, creationTimeField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(millis))
	}
	if timeout := e.Timeout(); timeout != DefaultTimeout {
		// A zero timeout differs from the default, so the seconds field is always present.
		b = appendDuration(b, timeoutSecondsField, timeoutNanosField, timeout, true)
	}
	return b, nil
}

func (CreationMarshaller) Unmarshal(data []byte) (*CreationEntry, error) {
	var (
		millis     int64
		seconds    uint64
		nanos      uint64
		hasTimeout bool
	)
	err := consumeFields(data, func(num protowire.Number, value uint64) {
		switch num {
		case creationTimeField:
			millis = protowire.DecodeZigZag(value)
		case timeoutSecondsField:
			seconds, hasTimeout = value, true
		case timeoutNanosField:
			nanos, hasTimeout = value, true
		}
	})
	if err != nil {
		return nil, err
	}

	e := NewCreationEntry(time.UnixMilli(millis))
	if hasTimeout {
		e.SetTimeout(toDuration(seconds, nanos))
	}
	return e, nil
}

// AccessMarshaller encodes access entries in protobuf wire format.
type AccessMarshaller struct{}

func (AccessMarshaller) Marshal(e *AccessEntry) ([]byte, error) {
	var b []byte
	b = appendDuration(b, sinceCreationSecondsField, sinceCreationNanosField, e.SinceCreation(), false)
	b = appendDuration(b, lastAccessSecondsField, lastAccessNanosField, e.LastAccess(), false)
	return b, nil
}

func (AccessMarshaller) Unmarshal(data []byte) (*AccessEntry, error) {
	var sinceSeconds, sinceNanos, lastSeconds, lastNanos uint64
	err := consumeFields(data, func(num protowire.Number, value uint64) {
		switch num {
		case sinceCreationSecondsField:
			sinceSeconds = value
		case sinceCreationNanosField:
			sinceNanos = value
		case lastAccessSecondsField:
			lastSeconds = value
		case lastAccessNanosField:
			lastNanos = value
		}
	})
	if err != nil {
		return nil, err
	}
	return NewAccessEntry(toDuration(sinceSeconds, sinceNanos), toDuration(lastSeconds, lastNanos)), nil
}

// appendDuration writes d as a seconds field and a nanos field, each omitted when zero.
// With explicit set, the seconds field is written even for a zero duration.
func appendDuration(b []byte, secondsField, nanosField protowire.Number, d time.Duration, explicit bool) []byte {
	seconds := uint64(d / time.Second)
	nanos := uint64(d % time.Second)
	if seconds != 0 || (explicit && nanos == 0) {
		b = protowire.AppendTag(b, secondsField, protowire.VarintType)
		b = protowire.AppendVarint(b, seconds)
	}
	if nanos != 0 {
		b = protowire.AppendTag(b, nanosField, protowire.VarintType)
		b = protowire.AppendVarint(b, nanos)
	}
	return b
}

func toDuration(seconds, nanos uint64) time.Duration {
	return time.Duration(seconds)*time.Second + time.Duration(nanos)
}

// consumeFields walks the varint fields of data. Fields of other wire types are skipped.
func consumeFields(data []byte, field func(num protowire.Number, value uint64)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedEntry, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedEntry, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		value, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedEntry, protowire.ParseError(n))
		}
		data = data[n:]
		field(num, value)
	}
	return nil
}
