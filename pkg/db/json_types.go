package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Options maps an answer label (A..E) to its text.
type Options map[string]string

// ItemAnalysis maps an answer label to a per-option commentary.
type ItemAnalysis map[string]string

type StringList []string

type SimulationQuestions []SimulationQuestion

// ThemeRollup maps a theme to its cumulative progress.
type ThemeRollup map[string]ThemeProgress

type ReviewHistory []ReviewEvent

type Explanation struct {
	Correct     string            `json:"correct"`
	Wrong       map[string]string `json:"wrong,omitempty"`
	KeyConcepts []string          `json:"keyConcepts"`
	ExamTip     string            `json:"examTip,omitempty"`
}

func scanJSON(name string, src any, dst any) (bool, error) {
	switch data := src.(type) {
	case nil:
		return false, nil
	case []byte:
		if len(data) == 0 {
			return false, nil
		}
		return true, json.Unmarshal(data, dst)
	case string:
		if data == "" {
			return false, nil
		}
		return true, json.Unmarshal([]byte(data), dst)
	default:
		return false, fmt.Errorf("%s: unsupported src type %T", name, src)
	}
}

func valueJSON(v any, empty string) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// Scan implements sql.Scanner for Options.
func (o *Options) Scan(src any) error {
	ok, err := scanJSON("Options", src, o)
	if !ok && err == nil {
		*o = nil
	}
	return err
}

// Value implements driver.Valuer for Options.
func (o Options) Value() (driver.Value, error) {
	return valueJSON(map[string]string(o), "{}")
}

func (a *ItemAnalysis) Scan(src any) error {
	ok, err := scanJSON("ItemAnalysis", src, a)
	if !ok && err == nil {
		*a = nil
	}
	return err
}

func (a ItemAnalysis) Value() (driver.Value, error) {
	return valueJSON(map[string]string(a), "{}")
}

func (l *StringList) Scan(src any) error {
	ok, err := scanJSON("StringList", src, l)
	if !ok && err == nil {
		*l = nil
	}
	return err
}

func (l StringList) Value() (driver.Value, error) {
	return valueJSON([]string(l), "[]")
}

func (q *SimulationQuestions) Scan(src any) error {
	ok, err := scanJSON("SimulationQuestions", src, q)
	if !ok && err == nil {
		*q = nil
	}
	return err
}

func (q SimulationQuestions) Value() (driver.Value, error) {
	return valueJSON([]SimulationQuestion(q), "[]")
}

func (r *ThemeRollup) Scan(src any) error {
	ok, err := scanJSON("ThemeRollup", src, r)
	if !ok && err == nil {
		*r = nil
	}
	return err
}

func (r ThemeRollup) Value() (driver.Value, error) {
	return valueJSON(map[string]ThemeProgress(r), "{}")
}

func (h *ReviewHistory) Scan(src any) error {
	ok, err := scanJSON("ReviewHistory", src, h)
	if !ok && err == nil {
		*h = nil
	}
	return err
}

func (h ReviewHistory) Value() (driver.Value, error) {
	return valueJSON([]ReviewEvent(h), "[]")
}
