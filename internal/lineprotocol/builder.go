// Package lineprotocol serializes records into the time-series line format
//
//	measurement,tag1=v1,tag2=v2 field1=1.5,field2="text" 1717840800000000000
//
// Rendering is done by the InfluxDB client's write.Point; the builder adds validation.
package lineprotocol

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var (
	ErrNoMeasurement = errors.New("measurement name is empty")
	ErrNoFields      = errors.New("line has no fields")
	ErrBadField      = errors.New("unsupported field value")
	ErrBadTag        = errors.New("tag cannot end with a backslash")
)

// Builder accumulates one line. Keys keep insertion order; re-adding a key replaces its value in place.
type Builder struct {
	point *write.Point
	err   error
}

func New(measurement string) *Builder {
	return &Builder{point: write.NewPointWithMeasurement(measurement)}
}

// Tag adds a tag. Empty values are skipped since the format cannot carry them.
func (b *Builder) Tag(key, value string) *Builder {
	if key == "" || value == "" {
		return b
	}
	if strings.HasSuffix(key, `\`) || strings.HasSuffix(value, `\`) {
		b.fail(fmt.Errorf("tag %q: %w", key, ErrBadTag))
		return b
	}
	b.point.AddTag(key, value)
	return b
}

// Field adds a field. Supported values are strings, bools, integers and floats.
func (b *Builder) Field(key string, value any) *Builder {
	if key == "" {
		return b
	}
	v, err := fieldValue(value)
	if err != nil {
		b.fail(fmt.Errorf("field %q: %w", key, err))
		return b
	}
	b.point.AddField(key, v)
	return b
}

func (b *Builder) Timestamp(t time.Time) *Builder {
	b.point.SetTime(t)
	return b
}

// Build renders the line without a trailing newline.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if b.point.Name() == "" {
		return "", ErrNoMeasurement
	}
	if len(b.point.FieldList()) == 0 {
		return "", ErrNoFields
	}

	line := strings.TrimSuffix(write.PointToLineProtocol(b.point, time.Nanosecond), "\n")
	if len(b.point.TagList()) == 0 {
		// The client always writes the tag separator after the measurement.
		head := strings.TrimSuffix(write.PointToLineProtocol(write.NewPointWithMeasurement(b.point.Name()), time.Nanosecond), " \n")
		line = strings.TrimSuffix(head, ",") + line[len(head):]
	}
	return line, nil
}

// MustBuild is Build for lines assembled from constant keys and known-good values.
func (b *Builder) MustBuild() string {
	line, err := b.Build()
	if err != nil {
		panic(err)
	}
	return line
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// fieldValue narrows v to the kinds the client renders. Unsigned values become int64 so every
// integer carries the i suffix. Conversion happens here because the client skips it when a
// field is replaced.
func fieldValue(v any) (any, error) {
	switch t := v.(type) {
	case string, bool, int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrBadField, t)
		}
		return int64(t), nil
	case float32:
		return checkFloat(float64(t))
	case float64:
		return checkFloat(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadField, v)
	}
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadField, f)
	}
	return f, nil
}
