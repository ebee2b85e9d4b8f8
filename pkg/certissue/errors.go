package certissue

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("format error")
	// ErrMatch matches every *MatchError.
	ErrMatch = errors.New("match error")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("decode error")

	// ErrNoSpreadsheet indicates a batch without any spreadsheet file.
	ErrNoSpreadsheet = errors.New("at least one spreadsheet file is required")
	// ErrNoRecords indicates the spreadsheets yielded no record.
	ErrNoRecords = errors.New("spreadsheets contain no valid record")
	// ErrGenerationFailed indicates the generator answered success:false.
	ErrGenerationFailed = errors.New("certificate generation failed")
)

// FormatError aborts a batch: a spreadsheet is missing, malformed or empty.
type FormatError struct {
	File string
	Err  error
}

func (e *FormatError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("format error: %v", e.Err)
	}
	return fmt.Sprintf("format error in %q: %v", e.File, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// MatchError reports an image whose file name matches no record key.
type MatchError struct {
	File string
	Key  string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s: no record with key %q; the image file name must equal the key column", e.File, e.Key)
}

// Is reports whether target is ErrMatch.
func (e *MatchError) Is(target error) bool {
	return target == ErrMatch
}

// DecodeError reports a file that could not be read.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: reading file: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// TransportError reports a failed call to a remote endpoint.
type TransportError struct {
	// Op names the call (upload, download, verify).
	Op string
	// StatusCode is the HTTP status, or 0 if no response arrived.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, statusCode int, err error) *TransportError {
	return &TransportError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

func errInvalidFlow(name string) error {
	return fmt.Errorf("invalid flow %q (must be basic or strict)", name)
}
