package models

import (
	"bytes"
	"encoding/json"
)

// UploadItem is one element of the basic upload payload.
type UploadItem struct {
	// ID is the record key.
	ID string `json:"id"`
	// Data holds the row fields plus an "images" array.
	Data UploadData `json:"data"`
}

// ImagesField is the wire key holding a record's images. A spreadsheet
// column with the same header is left out of the upload.
const ImagesField = "images"

// UploadData flattens row fields and images into one JSON object.
type UploadData struct {
	Fields Row
	Images []Image
}

// MarshalJSON encodes the fields in column order followed by "images".
func (d UploadData) MarshalJSON() ([]byte, error) {
	images := d.Images
	if images == nil {
		images = []Image{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, h := range d.Fields.columns {
		if h == ImagesField {
			continue
		}
		if err := writeJSONPair(&buf, h, d.Fields.values[h]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	buf.WriteString(`"` + ImagesField + `":`)
	buf.Write(imagesJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UploadResponse is the generation endpoint's reply.
type UploadResponse struct {
	// Success reports whether certificates were generated.
	Success bool `json:"success"`
	// CertificateFile names the generated archive, when successful.
	CertificateFile string `json:"certificate_file,omitempty"`
}

// Certificate is a certificate file as produced by the generator.
type Certificate struct {
	// Source is where the certificate was read from (file or zip member).
	Source string `json:"-"`
	// ID is the record key, when present.
	ID string `json:"id,omitempty"`
	// TxHash is the transaction hash anchoring the certificate.
	TxHash string `json:"tx_hash"`
	// OriginalData is the certified record data.
	OriginalData json.RawMessage `json:"original_data"`
}

// VerifyRequest is the verification endpoint's request body.
type VerifyRequest struct {
	TxHash       string          `json:"tx_hash"`
	OriginalData json.RawMessage `json:"original_data"`
}

// VerifyResponse is the verification endpoint's reply.
type VerifyResponse struct {
	// Verified reports whether the certificate checked out.
	Verified bool `json:"verified"`
	// Message explains a failed verification.
	Message string `json:"message,omitempty"`
	// Data carries the verified content when Verified is true.
	Data *VerifiedData `json:"data,omitempty"`
}

// VerifiedData is the content returned for a verified certificate.
type VerifiedData struct {
	// OriginalData is the record data as stored at issuance.
	OriginalData Row `json:"original_data"`
	// TxHash echoes the transaction hash.
	TxHash string `json:"tx_hash,omitempty"`
	// Images lists the certificate images.
	Images []VerifiedImage `json:"images"`
}

// VerifiedImage is one image of a verified certificate.
type VerifiedImage struct {
	Name    string `json:"name"`
	Data    string `json:"data"`
	IPFSCID string `json:"ipfs_cid"`
	Size    int64  `json:"size"`
}
