package models

// PreviewRow is one displayed record.
type PreviewRow struct {
	// Key is the record key.
	Key string `json:"key" yaml:"key"`
	// Values holds the field values in Preview.Headers order.
	Values []string `json:"values" yaml:"values"`
	// ImageCount is the number of attached images.
	ImageCount int `json:"image_count" yaml:"image_count"`
	// ImageNames lists the attached image names.
	ImageNames []string `json:"image_names,omitempty" yaml:"image_names,omitempty"`
	// PreviewURL is the first image's data URL, empty when none is attached.
	PreviewURL string `json:"-" yaml:"-"`
}

// HasImage reports whether at least one image is attached.
func (r PreviewRow) HasImage() bool {
	return r.ImageCount > 0
}

// Preview is the display table projected from a record store.
type Preview struct {
	// Headers are the field headers taken from the first well-formed record.
	Headers []string `json:"headers" yaml:"headers"`
	// Rows holds one entry per well-formed record.
	Rows []PreviewRow `json:"rows" yaml:"rows"`
	// Total is the number of records in the store.
	Total int `json:"total" yaml:"total"`
	// Shown is the number of rows displayed.
	Shown int `json:"shown" yaml:"shown"`
	// Skipped is the number of malformed records left out.
	Skipped int `json:"skipped" yaml:"skipped"`
	// SkippedKeys lists the keys of the skipped records.
	SkippedKeys []string `json:"skipped_keys,omitempty" yaml:"skipped_keys,omitempty"`
}
