package certissue

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ukaji3/certissue-go/pkg/certissue/models"
	"github.com/ukaji3/certissue-go/pkg/certissue/parser"
	"github.com/ukaji3/certissue-go/pkg/certissue/store"
)

// Session owns the record store of one upload session. Create one per
// operator session and reuse it for every batch; each batch clears it.
type Session struct {
	// ID identifies the session in the handoff store.
	ID string

	opts   Options
	store  *store.Store
	logger *zap.Logger
}

// NewSession creates a session with an empty store. A nil logger
// disables logging.
func NewSession(opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		ID:     uuid.NewString(),
		opts:   opts,
		store:  store.New(),
		logger: logger,
	}
}

// Options returns the session options.
func (s *Session) Options() Options {
	return s.opts
}

// Store returns the session's record store.
func (s *Session) Store() *store.Store {
	return s.store
}

// Clear discards all records.
func (s *Session) Clear() {
	s.store.Clear()
}

// Restore replaces the store content with previously handed-off records.
func (s *Session) Restore(id string, records []models.Record) {
	s.ID = id
	s.store.Load(records)
}

// Result summarizes one reconciliation batch.
type Result struct {
	// Spreadsheets lists the decoded spreadsheet files in processing order.
	Spreadsheets []string
	// Records is the number of records after the spreadsheet phase.
	Records int
	// Overwritten counts rows that replaced an earlier row with the same key.
	Overwritten int
	// Images is the number of image files in the batch.
	Images int
	// Attached is the number of images attached to a record.
	Attached int
	// Ignored lists files that are neither spreadsheets nor images.
	Ignored []string
	// Problems holds one *MatchError or *DecodeError per failed image.
	Problems []error
	// Strict reports whether problems fail the batch.
	Strict bool
}

// Err returns the joined problems when the batch was strict, nil otherwise.
func (r *Result) Err() error {
	if !r.Strict || len(r.Problems) == 0 {
		return nil
	}
	return errors.Join(r.Problems...)
}

// Reconcile clears the store, decodes every spreadsheet in files into
// records, then reads every image concurrently and attaches it to the
// record whose key equals the image's file name stem.
//
// A *FormatError aborts the batch. Per-image problems never do: they are
// collected in the result (and logged in the basic flow).
func (s *Session) Reconcile(ctx context.Context, files []File) (*Result, error) {
	gen := s.store.Clear()
	res := &Result{Strict: s.opts.ShouldMatchStrictly()}

	var sheets, images []File
	for _, f := range files {
		switch classify(f) {
		case kindSpreadsheet:
			sheets = append(sheets, f)
		case kindImage:
			images = append(images, f)
		default:
			res.Ignored = append(res.Ignored, f.Name())
			s.logger.Debug("Ignoring file", zap.String("file", f.Name()), zap.String("type", f.ContentType()))
		}
	}
	res.Images = len(images)

	if len(sheets) == 0 && s.opts.RequiresSpreadsheet() {
		return nil, &FormatError{Err: ErrNoSpreadsheet}
	}

	// Every spreadsheet is decoded before any image is matched
	for _, f := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.decodeSpreadsheet(f, res); err != nil {
			return nil, err
		}
		res.Spreadsheets = append(res.Spreadsheets, f.Name())
	}

	res.Records = s.store.Len()
	if res.Records == 0 {
		return nil, &FormatError{Err: ErrNoRecords}
	}

	if err := s.attachImages(ctx, gen, images, res); err != nil {
		return nil, err
	}

	s.logger.Info("Batch reconciled",
		zap.String("session", s.ID),
		zap.Int("records", res.Records),
		zap.Int("images", res.Images),
		zap.Int("attached", res.Attached),
		zap.Int("problems", len(res.Problems)))
	return res, nil
}

// decodeSpreadsheet upserts every row of f into the store.
func (s *Session) decodeSpreadsheet(f File, res *Result) error {
	data, err := readAllFile(f)
	if err != nil {
		return &DecodeError{File: f.Name(), Err: err}
	}

	rr, err := parser.Open(f.Name(), bytes.NewReader(data), s.opts.KeyMode())
	if err != nil {
		return &FormatError{File: f.Name(), Err: err}
	}
	defer rr.Close()

	rows := 0
	for rr.Next() {
		key := s.key(rr.Key())
		if s.store.Upsert(key, rr.Row()) {
			res.Overwritten++
			s.logger.Debug("Row overwrites earlier row",
				zap.String("file", f.Name()),
				zap.Int("line", rr.Line()),
				zap.String("key", key))
		}
		rows++
	}
	if err := rr.Err(); err != nil {
		return &FormatError{File: f.Name(), Err: err}
	}

	s.logger.Info("Spreadsheet decoded",
		zap.String("file", f.Name()),
		zap.String("mode", s.opts.KeyMode().String()),
		zap.Int("rows", rows))
	return nil
}

// attachImages fans out one reader per image and waits for all of them.
func (s *Session) attachImages(ctx context.Context, gen uint64, images []File, res *Result) error {
	var mu sync.Mutex
	addProblem := func(err error) {
		mu.Lock()
		res.Problems = append(res.Problems, err)
		mu.Unlock()
		if !res.Strict {
			s.logger.Warn("Image not attached", zap.Error(err))
		}
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers())

	for _, f := range images {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			attached, err := s.attachImage(ctx, gen, f)
			if err != nil {
				addProblem(err)
				return nil
			}
			if attached {
				mu.Lock()
				res.Attached++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// attachImage reads f and attaches it to its record. It returns false
// without error when the store was cleared by a newer batch.
func (s *Session) attachImage(ctx context.Context, gen uint64, f File) (bool, error) {
	key := s.key(parser.StemKey(f.Name()))
	if !s.store.Has(key) {
		return false, &MatchError{File: f.Name(), Key: key}
	}
	if err := ctx.Err(); err != nil {
		return false, &DecodeError{File: f.Name(), Err: err}
	}

	img, err := decodeImage(f)
	if err != nil {
		return false, &DecodeError{File: f.Name(), Err: err}
	}

	switch err := s.store.AttachImage(gen, key, img); {
	case errors.Is(err, store.ErrStaleGeneration):
		s.logger.Debug("Dropping image from cleared batch", zap.String("file", f.Name()))
		return false, nil
	case errors.Is(err, store.ErrNoRecord):
		return false, &MatchError{File: f.Name(), Key: key}
	case err != nil:
		return false, err
	}

	s.logger.Debug("Image attached", zap.String("file", f.Name()), zap.String("key", key))
	return true, nil
}

func (s *Session) key(k string) string {
	if s.opts.ShouldNormalizeKeys() {
		return parser.NormalizeKey(k)
	}
	return k
}

// decodeImage reads f into an Image with base64 data and a data URL.
func decodeImage(f File) (models.Image, error) {
	data, err := readAllFile(f)
	if err != nil {
		return models.Image{}, err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return models.Image{
		Name:        f.Name(),
		URL:         fmt.Sprintf("data:%s;base64,%s", f.ContentType(), encoded),
		Data:        encoded,
		ContentType: f.ContentType(),
		Size:        int64(len(data)),
	}, nil
}

func readAllFile(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
