package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoTables    = errors.New("envelope carries no table batches")
	ErrEmptyTable  = errors.New("table batch has no table name")
	ErrTooManyRows = errors.New("envelope exceeds maximum row count")
)

const MaxRowsPerEnvelope = 50000

// WriteEnvelope is one host invocation: the table batches written together plus trigger arguments
type WriteEnvelope struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	ReceivedAt time.Time    `json:"received_at"`
	Tables     []TableBatch `json:"tables"`

	// Args is either a "k=v,k2=v2" string or an object
	Args any `json:"args,omitempty"`
}

// NewEnvelope creates a new envelope for the given tables
func NewEnvelope(tables []TableBatch, source string) *WriteEnvelope {
	return &WriteEnvelope{
		ID:         uuid.NewString(),
		Source:     source,
		ReceivedAt: time.Now().UTC(),
		Tables:     tables,
	}
}

// WithArgs sets trigger arguments on the envelope
func (e *WriteEnvelope) WithArgs(args any) *WriteEnvelope {
	e.Args = args
	return e
}

// RowCount is the number of rows across all tables
func (e *WriteEnvelope) RowCount() int {
	n := 0
	for _, t := range e.Tables {
		n += len(t.Rows)
	}
	return n
}

// Validate checks the envelope is routable
func (e *WriteEnvelope) Validate() error {
	if len(e.Tables) == 0 {
		return ErrNoTables
	}
	for _, t := range e.Tables {
		if t.TableName == "" {
			return ErrEmptyTable
		}
	}
	if e.RowCount() > MaxRowsPerEnvelope {
		return ErrTooManyRows
	}
	return nil
}
