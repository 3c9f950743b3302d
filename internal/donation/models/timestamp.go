package models

import (
	"math"
	"reflect"
	"time"
)

// TimestampKind tags which representation a stored timestamp arrived in.
type TimestampKind int

const (
	TimestampMissing TimestampKind = iota
	TimestampInstant
	TimestampEpoch
	TimestampRaw
)

// Timestamp is a stored date value classified once at the storage boundary.
// Only the field matching Kind is meaningful.
type Timestamp struct {
	Kind    TimestampKind
	Instant time.Time
	Millis  int64
	Raw     string
}

func Missing() Timestamp { return Timestamp{} }

func Instant(t time.Time) Timestamp { return Timestamp{Kind: TimestampInstant, Instant: t} }

func EpochMillis(ms int64) Timestamp { return Timestamp{Kind: TimestampEpoch, Millis: ms} }

func RawTimestamp(s string) Timestamp { return Timestamp{Kind: TimestampRaw, Raw: s} }

func (t Timestamp) IsMissing() bool { return t.Kind == TimestampMissing }

// InstantOrMissing maps a nil pointer to Missing.
func InstantOrMissing(t *time.Time) Timestamp {
	if t == nil {
		return Missing()
	}
	return Instant(*t)
}

type asTimer interface{ AsTime() time.Time }
type toTimer interface{ ToTime() time.Time }

// TimestampOf classifies an untyped stored value. Unknown shapes are Missing.
func TimestampOf(v any) Timestamp {
	switch value := v.(type) {
	case nil:
		return Missing()
	case Timestamp:
		return value
	case time.Time:
		if value.IsZero() {
			return Missing()
		}
		return Instant(value)
	case *time.Time:
		if value == nil || value.IsZero() {
			return Missing()
		}
		return Instant(*value)
	case asTimer:
		if isNilPointer(value) {
			return Missing()
		}
		return Instant(value.AsTime())
	case toTimer:
		if isNilPointer(value) {
			return Missing()
		}
		return Instant(value.ToTime())
	case int64:
		return EpochMillis(value)
	case int:
		return EpochMillis(int64(value))
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return Missing()
		}
		return EpochMillis(int64(value))
	case string:
		if value == "" {
			return Missing()
		}
		return RawTimestamp(value)
	}
	return Missing()
}

// isNilPointer catches typed nils such as a nil *timestamppb.Timestamp, whose
// AsTime reports the Unix epoch instead of failing.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
