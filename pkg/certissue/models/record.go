package models

// Image represents an image file attached to a record.
type Image struct {
	// Name is the image file name (no path).
	Name string `json:"name"`
	// URL is the data URL used for previews.
	URL string `json:"url"`
	// Data is the base64-encoded image bytes.
	Data string `json:"data"`
	// ContentType is the declared image content type (e.g. image/png).
	ContentType string `json:"-"`
	// Size is the decoded size in bytes.
	Size int64 `json:"-"`
}

// Record is one spreadsheet row merged with its matched images.
type Record struct {
	// Key is the join key shared by the row and its image files.
	Key string `json:"key"`
	// Fields holds the row's header → value mapping.
	Fields Row `json:"data"`
	// Images lists the attached images in attach order.
	Images []Image `json:"images"`
}

// Malformed reports whether the record carries no fields.
func (r Record) Malformed() bool {
	return r.Fields.Len() == 0
}
