package certissue

import "github.com/ukaji3/certissue-go/pkg/certissue/models"

// BuildPreview projects records into a display table. Headers come from
// the first well-formed record. Malformed records are skipped and counted.
func BuildPreview(records []models.Record) models.Preview {
	p := models.Preview{
		Total: len(records),
		Rows:  []models.PreviewRow{},
	}

	for _, rec := range records {
		if rec.Malformed() {
			p.Skipped++
			p.SkippedKeys = append(p.SkippedKeys, rec.Key)
			continue
		}
		if p.Headers == nil {
			p.Headers = rec.Fields.Columns()
		}

		row := models.PreviewRow{
			Key:        rec.Key,
			Values:     make([]string, len(p.Headers)),
			ImageCount: len(rec.Images),
		}
		for i, h := range p.Headers {
			row.Values[i] = rec.Fields.Value(h)
		}
		for _, img := range rec.Images {
			row.ImageNames = append(row.ImageNames, img.Name)
		}
		if len(rec.Images) > 0 {
			row.PreviewURL = rec.Images[0].URL
		}
		p.Rows = append(p.Rows, row)
	}

	p.Shown = len(p.Rows)
	return p
}

// Preview projects the session's store into a display table.
func (s *Session) Preview() models.Preview {
	return BuildPreview(s.store.Entries())
}
