package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

type llmLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// parseDetectionsJSON parses the transcription returned by an LLM provider.
// Elements may be plain strings or {"text","confidence"} objects.
func parseDetectionsJSON(text string) ([]Detection, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the array boundaries - first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	text = text[startIdx : endIdx+1]

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	detections := make([]Detection, 0, len(raw))
	for i, elem := range raw {
		var line llmLine
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			line.Text = s
		} else if err := json.Unmarshal(elem, &line); err != nil {
			return nil, fmt.Errorf("unmarshaling line %d: %w", i, err)
		}

		line.Text = strings.TrimSpace(line.Text)
		if line.Text == "" {
			continue
		}
		detections = append(detections, Detection{
			Text:       line.Text,
			Confidence: clampConfidence(line.Confidence),
		})
	}

	return detections, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
