package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/normalize"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Result is the outcome of one extraction
type Result struct {
	normalize.Result
	ImageHash string `json:"imageHash"`
}

// Extractor is what the HTTP layer and the draft controller depend on
type Extractor interface {
	Validate(img extraction.Image) (extraction.Image, error)
	Extract(ctx context.Context, img extraction.Image) (Result, error)
}

// Service runs the requestor and the normalizer for one image at a time
type Service struct {
	requestor  extraction.Requestor
	normalizer *normalize.Normalizer
	maxBytes   int
	logger     *logger.Logger
}

var _ Extractor = (*Service)(nil)

// NewService creates a new extraction service
func NewService(requestor extraction.Requestor, normalizer *normalize.Normalizer, maxBytes int, logger *logger.Logger) *Service {
	return &Service{
		requestor:  requestor,
		normalizer: normalizer,
		maxBytes:   maxBytes,
		logger:     logger.Named("ocr"),
	}
}

// Validate checks the media type and size limit without calling the model
func (s *Service) Validate(img extraction.Image) (extraction.Image, error) {
	valid, err := extraction.Validate(img, s.maxBytes)
	if err != nil {
		s.logger.Info("Rejected upload",
			logger.String("media_type", img.MediaType),
			logger.Error(err))
		return extraction.Image{}, err
	}
	return valid, nil
}

// Extract validates the image, asks the model and normalizes its answer.
// Only unsupported media and request failures are returned as errors; a
// response that cannot be parsed yields the fallback record.
func (s *Service) Extract(ctx context.Context, img extraction.Image) (Result, error) {
	valid, err := s.Validate(img)
	if err != nil {
		return Result{}, err
	}

	img = valid
	hash := Fingerprint(img.Data)
	log := s.logger.With(logger.String("image_hash", hash))

	start := time.Now()
	raw, err := s.requestor.Request(ctx, img)
	if err != nil {
		log.Error("Extraction request failed", logger.Error(err))
		return Result{}, fmt.Errorf("failed to extract inspection record: %w", err)
	}

	res := s.normalizer.Normalize(raw)
	if res.IsFallback() {
		log.Warn("Model output was not usable, returning placeholder record",
			logger.Duration("elapsed", time.Since(start)))
	} else {
		log.Info("Extracted inspection record",
			logger.String("source", string(res.Source)),
			logger.Int("items", len(res.Record.InspectionItems)),
			logger.Duration("elapsed", time.Since(start)))
	}

	return Result{Result: res, ImageHash: hash}, nil
}

// Fingerprint returns a short content hash used to correlate log lines
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
