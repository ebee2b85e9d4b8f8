// Package certissue reconciles student spreadsheets with certificate images
// and prepares the result for certificate generation.
package certissue

import "github.com/ukaji3/certissue-go/pkg/certissue/parser"

// Flow represents the reconciliation flow.
type Flow string

const (
	// FlowBasic keys rows on their first column and only logs image misses.
	FlowBasic Flow = "basic"
	// FlowStrict keys rows on a named header and reports image misses.
	FlowStrict Flow = "strict"
)

// DefaultConcurrency is the number of image files read at once.
const DefaultConcurrency = 8

// Options configures reconciliation behavior.
type Options struct {
	// Flow selects the basic or strict flow.
	Flow Flow
	// KeyHeader names the key column in the strict flow.
	// If empty, defaults to parser.CertificateNumberHeader.
	KeyHeader string
	// StrictMatching specifies whether unmatched or unreadable images are
	// reported as problems of the batch.
	// If nil, defaults to true for the strict flow, false otherwise.
	StrictMatching *bool
	// NormalizeKeys specifies whether keys are NFC normalized.
	// If nil, defaults to true.
	NormalizeKeys *bool
	// Concurrency bounds the number of image files read at once.
	// Zero or less means DefaultConcurrency.
	Concurrency int
}

// DefaultOptions returns the strict flow options.
func DefaultOptions() Options {
	return Options{
		Flow: FlowStrict,
	}
}

// BasicOptions returns the basic flow options.
func BasicOptions() Options {
	return Options{
		Flow: FlowBasic,
	}
}

// KeyMode returns how row keys are derived.
func (o Options) KeyMode() parser.KeyMode {
	if o.Flow != FlowStrict {
		return parser.Positional()
	}
	if o.KeyHeader != "" {
		return parser.Labeled(o.KeyHeader)
	}
	return parser.Labeled(parser.CertificateNumberHeader)
}

// ShouldMatchStrictly returns whether image problems fail the batch.
func (o Options) ShouldMatchStrictly() bool {
	if o.StrictMatching != nil {
		return *o.StrictMatching
	}
	return o.Flow == FlowStrict
}

// ShouldNormalizeKeys returns whether keys are NFC normalized.
func (o Options) ShouldNormalizeKeys() bool {
	if o.NormalizeKeys != nil {
		return *o.NormalizeKeys
	}
	return true
}

// Workers returns the image read concurrency.
func (o Options) Workers() int {
	if o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

// RequiresSpreadsheet returns whether a batch without spreadsheets is
// rejected before decoding.
func (o Options) RequiresSpreadsheet() bool {
	return o.Flow == FlowStrict
}

// ParseFlow converts a flow name into a Flow.
func ParseFlow(name string) (Flow, error) {
	switch Flow(name) {
	case FlowBasic, FlowStrict:
		return Flow(name), nil
	}
	return "", &FormatError{Err: errInvalidFlow(name)}
}
