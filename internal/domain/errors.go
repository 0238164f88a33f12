// Package domain defines core types, interfaces, and errors for the lake loader.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConfigError indicates a malformed or missing source configuration.
// It is fatal at startup.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrConfig creates a ConfigError wrapping err (which may be nil).
func ErrConfig(err error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...), Err: err}
}

// NoMatchReason says which matching step rejected a notification.
type NoMatchReason string

// Matching steps that can reject a notification.
const (
	NoMatchBucket         NoMatchReason = "bucket"
	NoMatchPrefix         NoMatchReason = "prefix"
	NoMatchPartitionCount NoMatchReason = "partition_count"
	NoMatchPartitionName  NoMatchReason = "partition_name"
)

// NoMatchError reports that a notification does not belong to any configured
// table. It is an expected outcome, not a failure.
type NoMatchError struct {
	Reason NoMatchReason
	Bucket string
	Key    string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no source matches s3://%s/%s (%s)", e.Bucket, e.Key, e.Reason)
}

// FetchError indicates the object bytes could not be retrieved.
type FetchError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrFetch creates a FetchError for bucket/key.
func ErrFetch(bucket, key string, err error) *FetchError {
	return &FetchError{Bucket: bucket, Key: key, Err: err}
}

// ContentError indicates the object bytes are not usable JSON records.
type ContentError struct {
	Message string
	Err     error
}

func (e *ContentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ContentError) Unwrap() error { return e.Err }

// ErrContent creates a ContentError wrapping err (which may be nil).
func ErrContent(err error, format string, args ...interface{}) *ContentError {
	return &ContentError{Message: fmt.Sprintf(format, args...), Err: err}
}

// SchemaConflictError indicates a field was observed with two types that have
// no common supertype, either within a batch or against the table schema.
type SchemaConflictError struct {
	Field    string
	Existing FieldType
	Incoming FieldType
	// Table is set when the conflict is against a committed table schema.
	Table string
}

func (e *SchemaConflictError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("schema conflict on field %q of table %s: %s cannot become %s",
			e.Field, e.Table, e.Existing, e.Incoming)
	}
	return fmt.Sprintf("schema conflict on field %q: %s vs %s", e.Field, e.Existing, e.Incoming)
}

// VersionConflictError indicates another writer advanced the table first.
// The TableWriter retries on it; once retries are exhausted it reaches the caller.
type VersionConflictError struct {
	Table    string
	Expected TableVersion
	Attempts int
}

func (e *VersionConflictError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("commit to %s gave up after %d conflicting attempts (last expected version %d)",
			e.Table, e.Attempts, e.Expected)
	}
	return fmt.Sprintf("table %s moved past version %d", e.Table, e.Expected)
}

// FatalError indicates an unrecoverable local resource failure, such as a
// storage backend that cannot be reached at all.
type FatalError struct {
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FatalError) Unwrap() error { return e.Err }

// ErrFatal creates a FatalError wrapping err.
func ErrFatal(err error, format string, args ...interface{}) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsNoMatch reports whether err is (or wraps) a NoMatchError.
func IsNoMatch(err error) bool {
	var nm *NoMatchError
	return errors.As(err, &nm)
}

// IsVersionConflict reports whether err is (or wraps) a VersionConflictError.
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
