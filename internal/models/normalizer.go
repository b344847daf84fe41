package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.UnixDate,
}

// Normalize fills in a missing id and receive time, trims table and column names and drops nil rows.
func (e *WriteEnvelope) Normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Source = strings.ToLower(strings.TrimSpace(e.Source))
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	for i := range e.Tables {
		t := &e.Tables[i]
		t.TableName = strings.TrimSpace(t.TableName)

		rows := t.Rows[:0]
		for _, row := range t.Rows {
			if row == nil {
				continue
			}
			rows = append(rows, normalizeRow(row))
		}
		t.Rows = rows
	}
}

func normalizeRow(row Row) Row {
	dirty := false
	for k := range row {
		if strings.TrimSpace(k) != k {
			dirty = true
			break
		}
	}
	if !dirty {
		return row
	}
	out := make(Row, len(row))
	for k, v := range row {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
