package syncer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
)

// Kind tags the record type carried in an envelope.
type Kind string

const (
	KindSimulation        Kind = "simulation"
	KindUserProgress      Kind = "user_progress"
	KindSeenQuestions     Kind = "seen_questions"
	KindFlashcardProgress Kind = "flashcard_progress"
	KindCustomFlashcard   Kind = "custom_flashcard"
)

const EnvelopeVersion = 1

var (
	ErrKindMismatch       = errors.New("envelope kind mismatch")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// Envelope is the payload stored in a remote row's data column. Timestamps
// inside Data follow the Go types (RFC 3339 with nanoseconds).
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func Encode(kind Kind, v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	raw, err := json.Marshal(Envelope{Kind: kind, Version: EnvelopeVersion, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return datatypes.JSON(raw), nil
}

// Decode reads an envelope of the given kind into dst. Payloads written
// before envelopes existed carry no kind and go through decodeLegacy.
func Decode(raw []byte, kind Kind, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("decode %s: empty payload", kind)
	}
	if trimmed[0] == '{' {
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fmt.Errorf("decode %s: %w", kind, err)
		}
		if env.Kind != "" {
			if env.Kind != kind {
				return fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, kind, env.Kind)
			}
			if env.Version < 1 || env.Version > EnvelopeVersion {
				return fmt.Errorf("%w: %s v%d", ErrUnsupportedVersion, kind, env.Version)
			}
			if err := json.Unmarshal(env.Data, dst); err != nil {
				return fmt.Errorf("decode %s: %w", kind, err)
			}
			return nil
		}
	}
	if err := decodeLegacy(trimmed, dst); err != nil {
		return fmt.Errorf("decode legacy %s: %w", kind, err)
	}
	return nil
}

// Legacy payloads spelled some fields differently and stored dates either as
// ISO strings or epoch milliseconds. Only these field names are treated as
// dates.
var (
	legacyDateFields = map[string]bool{
		"createdAt":        true,
		"completedAt":      true,
		"answeredAt":       true,
		"lastActivityDate": true,
		"lastUpdated":      true,
		"lastLogin":        true,
		"nextReviewDate":   true,
		"lastReviewed":     true,
		"dueDate":          true,
		"date":             true,
		"modifiedAt":       true,
		"dueAt":            true,
		"lastReviewedAt":   true,
		"at":               true,
	}
	legacyRenames = map[string]string{
		"dueDate":        "dueAt",
		"nextReviewDate": "dueAt",
		"lastReviewed":   "lastReviewedAt",
		"date":           "at",
		"efactor":        "easeFactor",
	}
)

func decodeLegacy(raw []byte, dst any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return err
	}
	normalized, err := normalizeLegacy(tree)
	if err != nil {
		return err
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func normalizeLegacy(node any) (any, error) {
	switch v := node.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			n, err := normalizeLegacy(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			name := key
			if renamed, ok := legacyRenames[key]; ok {
				name = renamed
			}
			if legacyDateFields[key] && value != nil {
				ts, err := legacyTime(value)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", key, err)
				}
				out[name] = ts
				continue
			}
			n, err := normalizeLegacy(value)
			if err != nil {
				return nil, err
			}
			out[name] = n
		}
		return out, nil
	default:
		return node, nil
	}
}

func legacyTime(value any) (string, error) {
	switch v := value.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return "", err
		}
		return t.Format(time.RFC3339Nano), nil
	case json.Number:
		ms, err := v.Float64()
		if err != nil {
			return "", err
		}
		if math.IsNaN(ms) || math.IsInf(ms, 0) {
			return "", fmt.Errorf("invalid epoch %s", v)
		}
		return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("unexpected date value %v", value)
	}
}
