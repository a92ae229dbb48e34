package screening

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/braincheck/internal/classifier"
	"github.com/example/braincheck/internal/logging"
)

// Preprocessor turns raw image bytes into the model's input tensor.
type Preprocessor interface {
	Prepare(data []byte) ([]float32, error)
}

// Classifier runs a single forward pass over a prepared tensor.
type Classifier interface {
	Classify(ctx context.Context, tensor []float32) (*classifier.Result, error)
}

// Outcome is the classification of one submitted scan.
type Outcome struct {
	RequestID  string             `json:"request_id"`
	Label      string             `json:"label"`
	Confidence float32            `json:"confidence"`
	Scores     map[string]float32 `json:"scores"`
	Cached     bool               `json:"cached"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Service orchestrates the screening flow shared by both front-ends:
// preprocess, consult the cache, run inference, store the result. Inference
// is deterministic, so identical image bytes can safely share a cache entry
// keyed by content hash.
type Service struct {
	prep           Preprocessor
	model          Classifier
	cache          Cache
	logger         *zap.Logger
	cacheTTL       time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New constructs a screening service.
func New(prep Preprocessor, model Classifier, cache Cache, logger *zap.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		prep:           prep,
		model:          model,
		cache:          cache,
		logger:         logger.Named("screening"),
		cacheTTL:       cacheTTL,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Screen classifies one image. Per-request errors are returned to the caller
// for translation into a user-facing message; cache trouble degrades to a
// cache miss and never fails the request.
func (s *Service) Screen(ctx context.Context, imageBytes []byte) (*Outcome, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "screening.screen", requestID)

	hash := sha1.Sum(imageBytes)
	cacheKey := fmt.Sprintf("screening:%s", hex.EncodeToString(hash[:]))

	if outcome := s.lookup(ctx, requestID, cacheKey); outcome != nil {
		outcome.RequestID = requestID
		outcome.Cached = true
		opLogger.Info("served from cache", zap.String("label", outcome.Label))
		return outcome, nil
	}

	tensor, err := s.prep.Prepare(imageBytes)
	if err != nil {
		wrapped := logging.NewOperationError("screening.prepare", requestID, err)
		opLogger.Warn("preprocessing rejected image", zap.Error(wrapped))
		return nil, wrapped
	}

	result, err := s.model.Classify(ctx, tensor)
	if err != nil {
		wrapped := logging.NewOperationError("screening.classify", requestID, err)
		opLogger.Error("inference failed", zap.Error(wrapped))
		return nil, wrapped
	}

	outcome := &Outcome{
		RequestID:  requestID,
		Label:      result.Label,
		Confidence: result.Confidence,
		Scores:     result.Scores,
		CreatedAt:  time.Now().UTC(),
	}

	s.store(ctx, requestID, cacheKey, outcome)

	opLogger.Info("scan classified",
		zap.String("label", outcome.Label),
		zap.Float32("confidence", outcome.Confidence))
	return outcome, nil
}

// lookup returns a cached outcome or nil. Decode failures and cache errors
// are logged and treated as a miss.
func (s *Service) lookup(ctx context.Context, requestID, cacheKey string) *Outcome {
	var serialized string
	err := s.withCacheRetry(ctx, requestID, "cache.get.result", func() error {
		value, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		serialized = value
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logging.WithOperation(s.logger, "screening.lookup", requestID).Warn("cache read failed", zap.Error(err))
		}
		return nil
	}

	var outcome Outcome
	if err := json.Unmarshal([]byte(serialized), &outcome); err != nil {
		logging.WithOperation(s.logger, "screening.lookup", requestID).Warn("failed to decode cached outcome", zap.Error(err))
		return nil
	}
	return &outcome
}

func (s *Service) store(ctx context.Context, requestID, cacheKey string, outcome *Outcome) {
	serialized, err := json.Marshal(outcome)
	if err != nil {
		logging.WithOperation(s.logger, "screening.store", requestID).Warn("failed to serialize outcome", zap.Error(err))
		return
	}

	if err := s.withCacheRetry(ctx, requestID, "cache.set.result", func() error {
		return s.cache.Set(ctx, cacheKey, string(serialized), s.cacheTTL)
	}); err != nil {
		logging.WithOperation(s.logger, "screening.store", requestID).Warn("failed to cache outcome", zap.Error(err))
	}
}

func (s *Service) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if s.retryAttempts <= 1 {
		err := fn()
		if errors.Is(err, ErrCacheMiss) {
			return err
		}
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if errors.Is(err, ErrCacheMiss) {
			return err
		}

		if !isTransientError(err) || attempt == s.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
