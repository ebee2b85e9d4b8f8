package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ukaji3/certissue-go/internal/config"
	"github.com/ukaji3/certissue-go/pkg/certissue"
	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

// imageColumn is the table column listing attached images.
const imageColumn = "照片"

// Preview prints the preview table, or the preview as JSON or YAML.
func (p *Printer) Preview(pv models.Preview) error {
	if p.format != config.FormatTable {
		return p.structured(pv)
	}

	if pv.Shown == 0 {
		if err := p.println(p.muted.Render("No records to display.")); err != nil {
			return err
		}
	} else {
		headers := append(pv.Headers[:len(pv.Headers):len(pv.Headers)], imageColumn)
		rows := make([][]string, 0, len(pv.Rows))
		for _, r := range pv.Rows {
			cells := append(r.Values[:len(r.Values):len(r.Values)], p.imageCell(r))
			rows = append(rows, cells)
		}

		imageCol := len(headers) - 1
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(p.muted).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return p.header
				case col == imageCol && !pv.Rows[row].HasImage():
					return p.missing.Padding(0, 1)
				default:
					return p.r.NewStyle().Padding(0, 1)
				}
			})
		if p.width > 0 {
			t = t.Width(p.width)
		}
		if err := p.println(t.String()); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d record(s), %d shown", pv.Total, pv.Shown)
	if pv.Skipped > 0 {
		summary += fmt.Sprintf(", %d malformed skipped (%s)", pv.Skipped, strings.Join(pv.SkippedKeys, ", "))
	}
	return p.println(p.muted.Render(summary))
}

// imageCell describes the attached images of one row.
func (p *Printer) imageCell(r models.PreviewRow) string {
	if !r.HasImage() {
		return NotUploaded
	}
	return "view: " + strings.Join(r.ImageNames, ", ")
}

// Result prints the outcome of a reconciliation batch. Problems are listed
// only for the strict flow; the basic flow leaves them to the log.
func (p *Printer) Result(res *certissue.Result) error {
	if p.format != config.FormatTable {
		return p.structured(resultView(res))
	}

	line := fmt.Sprintf("%d spreadsheet(s), %d record(s), %d of %d image(s) attached",
		len(res.Spreadsheets), res.Records, res.Attached, res.Images)
	if res.Overwritten > 0 {
		line += fmt.Sprintf(", %d row(s) overwritten", res.Overwritten)
	}
	if len(res.Ignored) > 0 {
		line += fmt.Sprintf(", %d file(s) ignored", len(res.Ignored))
	}
	if err := p.println(line); err != nil {
		return err
	}

	if !res.Strict {
		return nil
	}
	for _, problem := range res.Problems {
		if err := p.println(p.bad.Render("✗ " + problem.Error())); err != nil {
			return err
		}
	}
	return nil
}

type resultJSON struct {
	Spreadsheets []string `json:"spreadsheets" yaml:"spreadsheets"`
	Records      int      `json:"records" yaml:"records"`
	Overwritten  int      `json:"overwritten" yaml:"overwritten"`
	Images       int      `json:"images" yaml:"images"`
	Attached     int      `json:"attached" yaml:"attached"`
	Ignored      []string `json:"ignored,omitempty" yaml:"ignored,omitempty"`
	Problems     []string `json:"problems,omitempty" yaml:"problems,omitempty"`
	Strict       bool     `json:"strict" yaml:"strict"`
}

func resultView(res *certissue.Result) resultJSON {
	out := resultJSON{
		Spreadsheets: res.Spreadsheets,
		Records:      res.Records,
		Overwritten:  res.Overwritten,
		Images:       res.Images,
		Attached:     res.Attached,
		Ignored:      res.Ignored,
		Strict:       res.Strict,
	}
	if !res.Strict {
		return out
	}
	for _, problem := range res.Problems {
		out.Problems = append(out.Problems, problem.Error())
	}
	return out
}

// ExportImages writes every attached image of records into dir as
// <key>/<image name> and returns the written paths.
func ExportImages(records []models.Record, dir string) ([]string, error) {
	var written []string
	var errs []error
	for _, rec := range records {
		for _, img := range rec.Images {
			path, err := writeImage(filepath.Join(dir, safeName(rec.Key)), img.Name, img.Data)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			written = append(written, path)
		}
	}
	return written, errors.Join(errs...)
}

// writeImage decodes base64 data into dir/name.
func writeImage(dir, name, data string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", &certissue.DecodeError{File: name, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, safeName(name))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// safeName keeps only the last element of name.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "_"
	}
	return name
}
