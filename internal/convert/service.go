// Package convert runs the staged conversion pipeline.
//
// A request moves through Received, Staged, Decoded and Encoded and ends in
// Cleaned. A failure after staging moves it to Failed and then Cleaned.
// Once a request reaches Staged its staged object is deleted before Convert
// returns, on success and on every failure path. Cleanup errors are logged
// and never replace the conversion result. Decode and encode are not
// retried.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/history"
	"github.com/JonMunkholm/sasbridge/internal/logging"
	"github.com/JonMunkholm/sasbridge/internal/sas7bdat"
	"github.com/JonMunkholm/sasbridge/internal/staging"
)

// Stage is a state of a conversion request.
type Stage string

const (
	StageReceived Stage = "received"
	StageStaged   Stage = "staged"
	StageDecoded  Stage = "decoded"
	StageEncoded  Stage = "encoded"
	StageFailed   Stage = "failed"
	StageCleaned  Stage = "cleaned"
)

// sasContentType labels staged uploads.
const sasContentType = "application/x-sas-data"

// Request is one uploaded dataset to convert.
type Request struct {
	FileName string
	Data     []byte
	Format   encode.Format

	// Subject and ClientIP are recorded in history only.
	Subject  string
	ClientIP string
}

// Result is a finished conversion.
type Result struct {
	ID          string
	FileName    string // output attachment name
	ContentType string
	Data        []byte
	Rows        int
	Columns     int
	Meta        dataset.Metadata
	Stage       Stage
}

// Failure reports the stage a request was in when its next step failed.
// The wrapped error keeps its apperr kind.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("conversion failed at %s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// StageOf returns the failing stage recorded in err, or "".
func StageOf(err error) Stage {
	var f *Failure
	if errors.As(err, &f) {
		return f.Stage
	}
	return ""
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Limiter  *Limiter
	Recorder history.Recorder

	// Decoder parses staged bytes; nil means sas7bdat.Decode.
	Decoder func([]byte) (*dataset.Table, error)
}

// Service converts uploads through a staging store.
type Service struct {
	store    staging.Store
	limiter  *Limiter
	recorder history.Recorder

	// seams for tests
	decode  func([]byte) (*dataset.Table, error)
	encoder func(encode.Format) (encode.Encoder, error)
	now     func() time.Time
}

// NewService returns a Service staging uploads in store.
func NewService(store staging.Store, opts Options) *Service {
	s := &Service{
		store:    store,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		decode:   sas7bdat.Decode,
		encoder:  encode.ForFormat,
		now:      time.Now,
	}
	if s.recorder == nil {
		s.recorder = history.NopRecorder{}
	}
	if opts.Decoder != nil {
		s.decode = opts.Decoder
	}
	return s
}

// LimiterStatus reports conversion slots. It is the zero value when the
// service runs without a limiter.
func (s *Service) LimiterStatus() LimiterStatus {
	if s.limiter == nil {
		return LimiterStatus{}
	}
	return s.limiter.Status()
}

// WaitForConversions blocks until in-flight conversions finish or ctx ends.
func (s *Service) WaitForConversions(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.WaitForDrain(ctx)
}

// History returns recent conversions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.recorder.Recent(ctx, limit)
}

// Convert stages req.Data, decodes it and encodes it in req.Format.
func (s *Service) Convert(ctx context.Context, req Request) (res *Result, err error) {
	const op = "convert"

	if len(req.Data) == 0 {
		return nil, apperr.New(apperr.Invalid, op, "no file provided")
	}
	enc, err := s.encoder(req.Format)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	id := uuid.NewString()
	logger := logging.WithFields(ctx,
		"conversion_id", id,
		"file", req.FileName,
		"format", string(req.Format),
		"bytes", len(req.Data),
	)
	start := s.now()
	stage := StageReceived
	var tbl *dataset.Table

	defer func() {
		s.record(ctx, logger, req, id, stage, tbl, res, err, start)
	}()

	obj, err := s.store.Put(ctx, req.Data, sasContentType)
	if err != nil {
		logger.Error("staging failed", "error", err)
		return nil, &Failure{Stage: stage, Err: err}
	}
	stage = StageStaged
	logger.Debug("upload staged", "key", obj.Key)

	// Runs before the history defer, so the entry sees the final stage.
	defer func() {
		if err != nil {
			stage = StageFailed
		}
		s.cleanup(ctx, logger, obj.Key)
		stage = StageCleaned
		if res != nil {
			res.Stage = stage
		}
	}()

	raw, err := s.store.Get(ctx, obj.Key)
	if err != nil {
		logger.Error("reading staged upload failed", "key", obj.Key, "error", err)
		return nil, &Failure{Stage: stage, Err: err}
	}

	tbl, err = s.decode(raw)
	if err != nil {
		logger.Warn("decode failed", "error", err)
		return nil, &Failure{Stage: stage, Err: err}
	}
	stage = StageDecoded
	logger.Debug("dataset decoded", "rows", tbl.Rows, "columns", len(tbl.Columns))

	out, err := enc.Encode(tbl)
	if err != nil {
		logger.Warn("encode failed", "error", err)
		return nil, &Failure{Stage: stage, Err: err}
	}
	stage = StageEncoded

	logger.Info("conversion completed",
		"rows", tbl.Rows,
		"columns", len(tbl.Columns),
		"output_bytes", len(out),
		"duration", s.now().Sub(start),
	)

	return &Result{
		ID:          id,
		FileName:    OutputName(req.FileName, enc.Extension()),
		ContentType: enc.ContentType(),
		Data:        out,
		Rows:        tbl.Rows,
		Columns:     len(tbl.Columns),
		Meta:        tbl.Meta,
		Stage:       stage,
	}, nil
}

// cleanup deletes the staged object even when ctx is already canceled.
func (s *Service) cleanup(ctx context.Context, logger *slog.Logger, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Error("failed to delete staged upload", "key", key, "error", err)
		return
	}
	logger.Debug("staged upload deleted", "key", key)
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, req Request, id string, stage Stage,
	tbl *dataset.Table, res *Result, convErr error, start time.Time,
) {
	e := history.Entry{
		ID:         id,
		FileName:   req.FileName,
		Format:     string(req.Format),
		Status:     history.StatusSucceeded,
		Stage:      string(stage),
		InputBytes: int64(len(req.Data)),
		DurationMS: s.now().Sub(start).Milliseconds(),
		Subject:    req.Subject,
		IPAddress:  req.ClientIP,
		CreatedAt:  start,
	}
	if tbl != nil {
		e.Rows, e.Columns = tbl.Rows, len(tbl.Columns)
	}
	if res != nil {
		e.OutputBytes = int64(len(res.Data))
	}
	if convErr != nil {
		e.Status = history.StatusFailed
		e.Stage = string(StageOf(convErr))
		e.ErrorKind = string(apperr.KindOf(convErr))
		e.Error = convErr.Error()
	}

	if err := s.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn("failed to record conversion history", "error", err)
	}
}

// OutputName derives the attachment name: the upload's base name with its
// extension replaced by ext.
func OutputName(fileName, ext string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "dataset"
	}
	return base + ext
}
