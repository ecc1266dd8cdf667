package repository

import (
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/domain"
)

// DivergenceRecord is one detected mismatch between the two backends for
// the same logical operation. Write-only: the repository never reads
// these back.
type DivergenceRecord struct {
	Operation      string    `json:"operation"`
	BackendAResult any       `json:"backend_a_result"`
	BackendBResult any       `json:"backend_b_result"`
	DetectedAt     time.Time `json:"detected_at"`
}

// DivergenceSink receives records for migration auditing. Implementations
// must be append-only and must not block.
type DivergenceSink interface {
	Record(rec DivergenceRecord)
}

// zapSink writes divergence records to the structured log.
type zapSink struct {
	log *zap.Logger
}

// NewZapSink returns a sink that appends records to the given logger.
func NewZapSink(log *zap.Logger) DivergenceSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapSink{log: log}
}

func (s *zapSink) Record(rec DivergenceRecord) {
	a, _ := json.Marshal(rec.BackendAResult)
	b, _ := json.Marshal(rec.BackendBResult)
	s.log.Warn("backend divergence detected",
		zap.String("operation", rec.Operation),
		zap.ByteString("backend_a", a),
		zap.ByteString("backend_b", b),
		zap.Time("detected_at", rec.DetectedAt),
	)
}

// DivergenceLogger compares the results both backends produced for the
// same logical operation during dual-write migration. It is audit-only:
// it never returns an error, never panics out, and never changes what
// the caller receives.
type DivergenceLogger struct {
	enabled bool
	sink    DivergenceSink
	log     *zap.Logger
}

// NewDivergenceLogger builds a logger that is active only when dual-write
// mode is on.
func NewDivergenceLogger(enabled bool, sink DivergenceSink, log *zap.Logger) *DivergenceLogger {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = NewZapSink(log)
	}
	return &DivergenceLogger{enabled: enabled, sink: sink, log: log}
}

// Compare records a divergence when the two canonical results differ
// beyond the enumerated exemptions (timestamps compared at second
// precision).
func (l *DivergenceLogger) Compare(operation string, resultA, resultB any) {
	if l == nil || !l.enabled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("divergence comparison panicked", zap.String("operation", operation), zap.Any("panic", r))
		}
	}()

	if canonicallyEqual(resultA, resultB) {
		return
	}
	l.sink.Record(DivergenceRecord{
		Operation:      operation,
		BackendAResult: resultA,
		BackendBResult: resultB,
		DetectedAt:     time.Now().UTC(),
	})
}

// PartialWrite records a secondary-backend write failure. The caller's
// request already succeeded on the primary; this is migration bookkeeping.
func (l *DivergenceLogger) PartialWrite(operation string, target backend.ID, err error) {
	if l == nil || !l.enabled {
		return
	}
	l.log.Warn("dual-write partial failure",
		zap.String("operation", operation),
		zap.String("backend", string(target)),
		zap.Error(err),
	)
	l.sink.Record(DivergenceRecord{
		Operation:      operation,
		BackendAResult: nil,
		BackendBResult: err.Error(),
		DetectedAt:     time.Now().UTC(),
	})
}

// canonicallyEqual performs the structural comparison. Known canonical
// types have their timestamps truncated to whole seconds first; the two
// backends legitimately store different sub-second precision.
func canonicallyEqual(a, b any) bool {
	return reflect.DeepEqual(truncateTimes(a), truncateTimes(b))
}

func truncateTimes(v any) any {
	switch t := v.(type) {
	case domain.Prompt:
		return truncatePrompt(t)
	case *domain.Prompt:
		if t == nil {
			return nil
		}
		return truncatePrompt(*t)
	case []domain.Prompt:
		out := make([]domain.Prompt, len(t))
		for i := range t {
			out[i] = truncatePrompt(t[i])
		}
		return out
	case domain.PromptPage:
		page := domain.PromptPage{Total: t.Total, Items: make([]domain.Prompt, len(t.Items))}
		for i := range t.Items {
			page.Items[i] = truncatePrompt(t.Items[i])
		}
		return page
	case domain.Collection:
		t.CreatedAt = t.CreatedAt.Truncate(time.Second)
		t.UpdatedAt = t.UpdatedAt.Truncate(time.Second)
		return t
	default:
		return v
	}
}

func truncatePrompt(p domain.Prompt) domain.Prompt {
	p.CreatedAt = p.CreatedAt.Truncate(time.Second)
	p.UpdatedAt = p.UpdatedAt.Truncate(time.Second)
	return p
}
