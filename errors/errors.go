// Package errors provides error handling for the job importer.
//
// It re-exports github.com/cockroachdb/errors so that every package in the
// repository gets stack traces, wrapping, and structured detail without
// importing the third-party module path directly.
//
// Usage:
//
//	if err := store.CreateFeed(feed); err != nil {
//	    return errors.Wrap(err, "failed to create feed")
//	}
//
//	if errors.Is(err, sql.ErrNoRows) {
//	    // handle not found
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)
