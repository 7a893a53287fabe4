package v1

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidSample marks sample validation failures that should return HTTP 400.
// Rejection happens before any state mutation.
var ErrInvalidSample = errors.New("invalid sample")

// Sample is one reported playback position for a (user, video) pair.
// It is the atomic unit of ingestion: created when the report is received,
// immutable afterwards, and removed only when a merge pass consumes its key.
type Sample struct {
	// ID is a server-assigned unique identifier. It exists for tracing and
	// debugging; ordering semantics never depend on it.
	ID string `json:"id"`

	// UserID and VideoID are opaque identifiers supplied by the client.
	// Together they form the composite grouping key.
	UserID  string `json:"user_id"`
	VideoID string `json:"video_id"`

	// ProgressSeconds is the reported playback position. Exact decimal
	// arithmetic so comparisons between samples never suffer float drift.
	ProgressSeconds decimal.Decimal `json:"progress_seconds"`

	// CreatedAt is stamped at ingestion time (server clock), never
	// client-supplied.
	CreatedAt time.Time `json:"created_at"`
}

// SampleRequest is the client-supplied portion of a sample. The store fills
// in ID and CreatedAt on acceptance.
type SampleRequest struct {
	UserID          string          `json:"user_id"`
	VideoID         string          `json:"video_id"`
	ProgressSeconds decimal.Decimal `json:"progress_seconds"`
}

// Validate ensures the request carries both identifiers and a non-negative
// position. Non-finite positions are unrepresentable: they fail JSON decoding
// before this point.
func (r *SampleRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidSample)
	}
	if r.VideoID == "" {
		return fmt.Errorf("%w: video_id is required", ErrInvalidSample)
	}
	if r.ProgressSeconds.IsNegative() {
		return fmt.Errorf("%w: progress_seconds must be >= 0, got %s", ErrInvalidSample, r.ProgressSeconds)
	}
	return nil
}

// CommittedProgress is the durable "furthest point reached" record for a
// (user, video) pair. FurthestSeconds is non-decreasing over the record's
// lifetime: a merge pass may raise it, nothing may lower it.
type CommittedProgress struct {
	UserID          string          `json:"user_id"`
	VideoID         string          `json:"video_id"`
	FurthestSeconds decimal.Decimal `json:"furthest_seconds"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
