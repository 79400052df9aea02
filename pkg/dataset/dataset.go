// Package dataset loads the static question bank from JSON, CSV or XLSX files.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrMissingHeader     = errors.New("dataset header must name id, theme, statement and correct_answer columns")
)

// Result is a parsed dataset. Skipped counts rows that were empty, invalid
// or repeated an earlier id.
type Result struct {
	Questions []db.Question
	Skipped   int
}

// LoadFile picks the parser from the file extension.
func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var res *Result
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		res, err = ParseJSON(data)
	case ".csv", ".tsv", ".txt":
		res, err = ParseCSV(data)
	case ".xlsx":
		res, err = ParseXLSX(bytes.NewReader(data), "")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	logger.Info("dataset loaded", "path", path, "questions", len(res.Questions), "skipped", res.Skipped)
	return res, nil
}

// ParseJSON accepts either a bare array of questions or an object with a
// "questions" array.
func ParseJSON(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)

	var questions []db.Question
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Questions []db.Question `json:"questions"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		questions = wrapper.Questions
	} else if err := json.Unmarshal(trimmed, &questions); err != nil {
		return nil, err
	}

	res := &Result{}
	seen := map[string]bool{}
	for _, q := range questions {
		normalize(&q)
		if err := validate(q); err != nil {
			logger.Debug("skipping dataset question", "id", q.ID, "error", err)
			res.Skipped++
			continue
		}
		if seen[q.ID] {
			res.Skipped++
			continue
		}
		seen[q.ID] = true
		res.Questions = append(res.Questions, q)
	}
	return res, nil
}

// columns maps a header row to column positions.
type columns map[string]int

var headerAliases = map[string]string{
	"id":             "id",
	"question_id":    "id",
	"theme":          "theme",
	"tema":           "theme",
	"subtheme":       "subtheme",
	"difficulty":     "difficulty",
	"tier":           "tier",
	"statement":      "statement",
	"question":       "statement",
	"correct_answer": "correct_answer",
	"correct":        "correct_answer",
	"answer":         "correct_answer",
	"explanation":    "explanation",
	"tags":           "tags",
	"source":         "source",
}

func parseHeader(record []string) (columns, bool) {
	cols := columns{}
	for i, field := range record {
		name := strings.ToLower(strings.TrimSpace(field))
		name = strings.ReplaceAll(name, " ", "_")
		if canonical, ok := headerAliases[name]; ok {
			cols[canonical] = i
			continue
		}
		if label, ok := strings.CutPrefix(name, "option_"); ok && label != "" {
			cols["option_"+strings.ToUpper(label)] = i
		}
	}
	required := []string{"id", "theme", "statement", "correct_answer"}
	return cols, lo.Every(lo.Keys(cols), required)
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// fromRecords turns a header row plus data rows into questions. It is shared
// by the CSV and XLSX parsers.
func fromRecords(records [][]string) (*Result, error) {
	res := &Result{}
	start := -1
	var cols columns
	for i, record := range records {
		if isEmptyRecord(record) {
			continue
		}
		var ok bool
		cols, ok = parseHeader(record)
		if !ok {
			return nil, ErrMissingHeader
		}
		start = i + 1
		break
	}
	if start < 0 {
		return res, nil
	}

	seen := map[string]bool{}
	for _, record := range records[start:] {
		if isEmptyRecord(record) {
			res.Skipped++
			continue
		}
		q, err := cols.question(record)
		if err == nil {
			err = validate(q)
		}
		if err != nil {
			logger.Debug("skipping dataset row", "id", q.ID, "error", err)
			res.Skipped++
			continue
		}
		if seen[q.ID] {
			res.Skipped++
			continue
		}
		seen[q.ID] = true
		res.Questions = append(res.Questions, q)
	}
	return res, nil
}

func (c columns) question(record []string) (db.Question, error) {
	q := db.Question{
		ID:            c.get(record, "id"),
		Theme:         c.get(record, "theme"),
		Subtheme:      c.get(record, "subtheme"),
		Statement:     c.get(record, "statement"),
		CorrectAnswer: c.get(record, "correct_answer"),
		Source:        c.get(record, "source"),
		Explanation:   db.Explanation{Correct: c.get(record, "explanation")},
	}
	for name := range c {
		label, ok := strings.CutPrefix(name, "option_")
		if !ok {
			continue
		}
		if text := c.get(record, name); text != "" {
			if q.Options == nil {
				q.Options = db.Options{}
			}
			q.Options[label] = text
		}
	}
	if tags := c.get(record, "tags"); tags != "" {
		q.Tags = lo.Without(lo.Map(strings.Split(tags, "|"), func(tag string, _ int) string {
			return strings.TrimSpace(tag)
		}), "")
	}

	var err error
	if q.Difficulty, err = optionalInt(c.get(record, "difficulty")); err != nil {
		return q, fmt.Errorf("difficulty: %w", err)
	}
	if q.Tier, err = optionalInt(c.get(record, "tier")); err != nil {
		return q, fmt.Errorf("tier: %w", err)
	}
	normalize(&q)
	return q, nil
}

func optionalInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func normalize(q *db.Question) {
	q.ID = strings.TrimSpace(q.ID)
	q.Theme = strings.TrimSpace(q.Theme)
	q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	if q.Difficulty <= 0 {
		q.Difficulty = 1
	}
	if q.Tags == nil {
		q.Tags = db.StringList{}
	}
}

func validate(q db.Question) error {
	switch {
	case q.ID == "":
		return errors.New("missing id")
	case q.Theme == "":
		return errors.New("missing theme")
	case strings.TrimSpace(q.Statement) == "":
		return errors.New("missing statement")
	case q.CorrectAnswer == "":
		return errors.New("missing correct answer")
	}
	if len(q.Options) > 0 {
		if _, ok := q.Options[q.CorrectAnswer]; !ok {
			return fmt.Errorf("correct answer %q is not an option", q.CorrectAnswer)
		}
	}
	return nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
