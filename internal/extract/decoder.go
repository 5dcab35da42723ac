// Package extract turns free text into typed records via a generation
// call plus tolerant decoding. The decoder's contract is "always return
// something usable": when model output cannot be parsed it degrades to a
// single best-effort record instead of failing the operation.
package extract

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/vibeone/assistant/pkg/models"
)

// ErrDecodeFailed means no recovery was possible. Unreachable through
// DecodeRecords, which always falls back; only DecodeObject callers that
// handle their own fallback see it.
var ErrDecodeFailed = errors.New("extract: decode failed")

// recordPayload is the wire shape the extraction prompt asks for.
type recordPayload struct {
	Title   string   `json:"title"`
	DueDate string   `json:"due_date"`
	Tags    []string `json:"tags"`
}

// DecodeRecords parses raw model output into extracted records.
//
// It strips up to one leading and one trailing code fence (with or
// without a language tag), then parses a JSON array, tolerating a single
// bare object. Missing optional fields take their defaults: empty tag
// list, absent due date. If nothing parses, it returns exactly one
// degraded record whose title is the original, un-decoded text, tagged
// as manually derived.
func DecodeRecords(raw string) []models.ExtractedRecord {
	cleaned := StripFence(raw)

	var payloads []recordPayload
	if err := json.Unmarshal([]byte(cleaned), &payloads); err != nil {
		var single recordPayload
		if err := json.Unmarshal([]byte(cleaned), &single); err != nil || single.Title == "" {
			return []models.ExtractedRecord{fallbackRecord(raw)}
		}
		payloads = []recordPayload{single}
	}
	if len(payloads) == 0 {
		return []models.ExtractedRecord{fallbackRecord(raw)}
	}

	records := make([]models.ExtractedRecord, 0, len(payloads))
	for _, p := range payloads {
		title := p.Title
		if title == "" {
			title = "Untitled Task"
		}
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		records = append(records, models.ExtractedRecord{
			Title:   title,
			DueDate: p.DueDate,
			Tags:    tags,
		})
	}
	return records
}

// DecodeObject parses raw model output as a single JSON object after
// fence stripping. Returns ErrDecodeFailed when the remainder is not an
// object; callers choose their own degraded fallback.
func DecodeObject(raw string) (map[string]any, error) {
	cleaned := StripFence(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, ErrDecodeFailed
	}
	return obj, nil
}

// fallbackRecord synthesizes the degraded single record: the original
// text becomes the title and the manual tag marks the downgrade.
func fallbackRecord(raw string) models.ExtractedRecord {
	return models.ExtractedRecord{
		Title:    raw,
		Tags:     []string{models.ManualTag},
		Degraded: true,
	}
}

// StripFence removes up to one leading and one trailing markdown code
// fence. Model output sometimes wraps JSON in a fenced block even when
// asked not to.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		rest := s[3:]
		// Drop an optional language tag up to the first newline.
		if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
			s = rest[idx+1:]
		} else {
			s = strings.TrimPrefix(rest, "json")
		}
	}
	if strings.HasSuffix(strings.TrimSpace(s), "```") {
		trimmed := strings.TrimSpace(s)
		s = trimmed[:len(trimmed)-3]
	}

	return strings.TrimSpace(s)
}
