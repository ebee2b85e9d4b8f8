package certissue

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

var (
	// ErrMissingTxHash indicates a certificate without a tx_hash field.
	ErrMissingTxHash = errors.New("certificate has no tx_hash field")
	// ErrMissingOriginalData indicates a certificate without original_data.
	ErrMissingOriginalData = errors.New("certificate has no original_data field")
)

// Verifier checks a certificate against the remote verification service.
type Verifier interface {
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error)
}

// ReadCertificates reads a certificate file. A .zip archive yields one
// certificate per .json member, in member name order; any other file is
// parsed as a single JSON certificate.
func ReadCertificates(path string) ([]models.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{File: filepath.Base(path), Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return readCertificateArchive(filepath.Base(path), data)
	}

	cert, err := ParseCertificate(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	return []models.Certificate{cert}, nil
}

// readCertificateArchive parses every .json member of a zip archive.
func readCertificateArchive(name string, data []byte) ([]models.Certificate, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{File: name, Err: err}
	}

	var members []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(filepath.Ext(f.Name), ".json") {
			members = append(members, f.Name)
		}
	}
	if len(members) == 0 {
		return nil, &FormatError{File: name, Err: errors.New("archive contains no .json certificate")}
	}
	sort.Strings(members)

	certs := make([]models.Certificate, 0, len(members))
	for _, member := range members {
		content, err := readZipFile(r, member)
		if err != nil {
			return nil, &DecodeError{File: name + ":" + member, Err: err}
		}
		cert, err := ParseCertificate(name+":"+member, content)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// readZipFile reads a file from a zip archive.
func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found in archive: %s", name)
}

// ParseCertificate decodes one certificate and checks that it carries a
// transaction hash and the original data.
func ParseCertificate(source string, data []byte) (models.Certificate, error) {
	var cert models.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return cert, &FormatError{File: source, Err: err}
	}
	cert.Source = source

	if cert.TxHash == "" {
		return cert, &FormatError{File: source, Err: ErrMissingTxHash}
	}
	raw := bytes.TrimSpace(cert.OriginalData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cert, &FormatError{File: source, Err: ErrMissingOriginalData}
	}
	return cert, nil
}

// VerifyCertificate sends cert to v. A verified:false reply is not an
// error; the caller inspects the response.
func VerifyCertificate(ctx context.Context, v Verifier, cert models.Certificate) (*models.VerifyResponse, error) {
	resp, err := v.Verify(ctx, models.VerifyRequest{
		TxHash:       cert.TxHash,
		OriginalData: cert.OriginalData,
	})
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, NewTransportError("verify", 0, err)
	}
	if resp == nil {
		return nil, NewTransportError("verify", 0, errors.New("empty response"))
	}
	if resp.Verified && resp.Data == nil {
		return nil, NewTransportError("verify", 0, errors.New("verified response carries no data"))
	}
	return resp, nil
}
