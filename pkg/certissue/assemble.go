package certissue

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

// Uploader sends the basic payload to the certificate generator.
type Uploader interface {
	Upload(ctx context.Context, items []models.UploadItem) (*models.UploadResponse, error)
}

// HandoffStore keeps session entries between the upload step and the
// review step.
type HandoffStore interface {
	Put(ctx context.Context, sessionID string, entries []models.Record) error
	Get(ctx context.Context, sessionID string) ([]models.Record, error)
}

// Entries returns the session's records in store order.
func (s *Session) Entries() []models.Record {
	return s.store.Entries()
}

// UploadPayload flattens entries into the generator's wire format.
func UploadPayload(entries []models.Record) []models.UploadItem {
	items := make([]models.UploadItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.UploadItem{
			ID: e.Key,
			Data: models.UploadData{
				Fields: e.Fields,
				Images: e.Images,
			},
		})
	}
	return items
}

// Submit sends entries to the generator. A transport failure or a
// success:false reply is returned as a *TransportError.
func Submit(ctx context.Context, up Uploader, entries []models.Record) (*models.UploadResponse, error) {
	if len(entries) == 0 {
		return nil, &FormatError{Err: ErrNoRecords}
	}

	resp, err := up.Upload(ctx, UploadPayload(entries))
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, NewTransportError("upload", 0, err)
	}
	if resp == nil || !resp.Success {
		return resp, NewTransportError("upload", 0, ErrGenerationFailed)
	}
	return resp, nil
}

// Submit sends the session's records to the generator. The store is left
// untouched whatever the outcome.
func (s *Session) Submit(ctx context.Context, up Uploader) (*models.UploadResponse, error) {
	resp, err := Submit(ctx, up, s.Entries())
	if err != nil {
		s.logger.Warn("Submission failed", zap.String("session", s.ID), zap.Error(err))
		return resp, err
	}
	s.logger.Info("Submission accepted",
		zap.String("session", s.ID),
		zap.String("certificate_file", resp.CertificateFile))
	return resp, nil
}

// Handoff persists the session's records for the review step and returns
// the session ID to review them under.
func (s *Session) Handoff(ctx context.Context, hs HandoffStore) (string, error) {
	entries := s.Entries()
	if len(entries) == 0 {
		return "", &FormatError{Err: ErrNoRecords}
	}
	if err := hs.Put(ctx, s.ID, entries); err != nil {
		return "", err
	}
	s.logger.Info("Session handed off", zap.String("session", s.ID), zap.Int("records", len(entries)))
	return s.ID, nil
}

// Resume loads a handed-off session.
func Resume(ctx context.Context, hs HandoffStore, sessionID string, opts Options, logger *zap.Logger) (*Session, error) {
	entries, err := hs.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s := NewSession(opts, logger)
	s.Restore(sessionID, entries)
	return s, nil
}
