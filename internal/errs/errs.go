// Package errs carries the machine-readable error codes of the indexing and
// answering core.
//
// A code is attached once, at the boundary where a failure gets its meaning
// (for example where an embedding error becomes "embedding unavailable").
// Callers further up wrap with fmt.Errorf and %w, which keeps the code
// reachable through CodeOf.
package errs

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeEmbeddingUnavailable Code = "index.embedding.unavailable"
	CodeCorruptIndex         Code = "index.load.corrupt"
	CodeMetadataUnreadable   Code = "index.metadata.unreadable"
	CodePersistFailure       Code = "index.persist.failure"

	CodeIndexNotReady          Code = "answer.index.not_ready"
	CodeAnswerGenerationFailed Code = "answer.generation.failed"

	CodeRecordsReadFailure  Code = "records.read.failure"
	CodeRecordsWriteFailure Code = "records.write.failure"
	CodeRecordsNotFound     Code = "records.company.not_found"

	CodeConfigLoadFailure  Code = "config.load.failure"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"
	CodeProviderSetup      Code = "provider.setup.invalid"
	CodeInvalidInput       Code = "input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldCompany(value string) Attr {
	return Field("company", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the code attached to err, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := any(oopsErr.Code()).(type) {
	case Code:
		return code
	case string:
		return Code(code)
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

// FieldsOf returns the structured context attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsEmbeddingUnavailable(err error) bool {
	return HasCode(err, CodeEmbeddingUnavailable)
}

func IsCorruptIndex(err error) bool {
	return HasCode(err, CodeCorruptIndex)
}

func IsIndexNotReady(err error) bool {
	return HasCode(err, CodeIndexNotReady)
}

func IsAnswerGenerationFailed(err error) bool {
	return HasCode(err, CodeAnswerGenerationFailed)
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
