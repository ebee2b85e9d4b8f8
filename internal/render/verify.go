package render

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/ukaji3/certissue-go/internal/config"
	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

type verificationView struct {
	Source   string                 `json:"source" yaml:"source"`
	TxHash   string                 `json:"tx_hash" yaml:"tx_hash"`
	Verified bool                   `json:"verified" yaml:"verified"`
	Message  string                 `json:"message,omitempty" yaml:"message,omitempty"`
	Fields   []fieldView            `json:"fields,omitempty" yaml:"fields,omitempty"`
	Images   []models.VerifiedImage `json:"images,omitempty" yaml:"images,omitempty"`
}

type fieldView struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Verification prints the verification outcome of one certificate.
func (p *Printer) Verification(cert models.Certificate, resp *models.VerifyResponse) error {
	view := verificationView{
		Source:   cert.Source,
		TxHash:   cert.TxHash,
		Verified: resp.Verified,
		Message:  resp.Message,
	}
	if resp.Verified && resp.Data != nil {
		for _, name := range resp.Data.OriginalData.Columns() {
			if name == models.ImagesField {
				continue
			}
			view.Fields = append(view.Fields, fieldView{Name: name, Value: resp.Data.OriginalData.Value(name)})
		}
		for _, img := range resp.Data.Images {
			img.Data = ""
			view.Images = append(view.Images, img)
		}
	}

	if p.format != config.FormatTable {
		return p.structured(view)
	}

	if !view.Verified {
		msg := view.Message
		if msg == "" {
			msg = "certificate could not be verified"
		}
		return p.println(p.bad.Render(fmt.Sprintf("✗ %s: %s", view.Source, msg)))
	}

	if err := p.println(p.ok.Render("✓ " + view.Source + ": certificate verified")); err != nil {
		return err
	}
	if err := p.println(p.muted.Render("tx_hash: " + view.TxHash)); err != nil {
		return err
	}

	if len(view.Fields) > 0 {
		rows := make([][]string, 0, len(view.Fields))
		for _, f := range view.Fields {
			rows = append(rows, []string{f.Name, f.Value})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(p.muted).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if col == 0 {
					return p.title.Padding(0, 1)
				}
				return p.r.NewStyle().Padding(0, 1)
			})
		if err := p.println(t.String()); err != nil {
			return err
		}
	}

	for _, img := range view.Images {
		line := fmt.Sprintf("  %s  %s  IPFS %s", img.Name, humanize.Bytes(uint64(max(img.Size, 0))), img.IPFSCID)
		if err := p.println(line); err != nil {
			return err
		}
	}
	return nil
}

// ExportVerifiedImages writes the images of a verified certificate into
// dir/<tx hash>/ and returns the written paths.
func ExportVerifiedImages(resp *models.VerifyResponse, dir string) ([]string, error) {
	if resp == nil || resp.Data == nil {
		return nil, nil
	}

	sub := resp.Data.TxHash
	if sub == "" {
		sub = "certificate"
	}
	target := filepath.Join(dir, safeName(sub))

	var written []string
	var errs []error
	for _, img := range resp.Data.Images {
		path, err := writeImage(target, img.Name, img.Data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}
