package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared across pipelines.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldCandidate = "candidate_id"
	FieldPosting   = "posting_id"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields turns key/value pairs into zap fields. Both sides are trimmed and
// pairs with an empty side are dropped.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// OracleFields describe the scoring oracle behind a log entry.
func OracleFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithOracle(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, OracleFields(provider, model)...)
}

// ApplicationFields identify the (candidate, posting) pair an entry is about.
func ApplicationFields(candidateID, postingID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldPosting, Value: postingID},
		StringField{Key: FieldCandidate, Value: candidateID},
	)
}

func WithApplication(logger *zap.Logger, candidateID, postingID string) *zap.Logger {
	return WithFields(logger, ApplicationFields(candidateID, postingID)...)
}
