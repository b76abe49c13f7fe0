package llmprovider

import (
	"encoding/json"
	"strings"

	"github.com/rohankatakam/manifestaudit/internal/mferrors"
)

// rawClassification mirrors the JSON object shape every provider must
// return (spec §6's wire-level contract).
type rawClassification struct {
	Purpose           string  `json:"purpose"`
	Category          string  `json:"category"`
	Confidence        float64 `json:"confidence"`
	SecurityRelevance string  `json:"security_relevance"`
	Reasoning         string  `json:"reasoning"`
}

// ParseClassification locates the first JSON object in reply, validates
// its required keys, and returns it. Markdown code fences and surrounding
// prose (LLMs routinely emit both despite instructions) are stripped first,
// the way the teacher's atomizer.repairJSON does.
func ParseClassification(reply string) (rawClassification, error) {
	cleaned := stripFences(reply)

	start := strings.Index(cleaned, "{")
	if start == -1 {
		return rawClassification{}, mferrors.New(mferrors.KindMalformedResponse, "no JSON object found in provider reply")
	}

	// Decode only the first JSON value; any text after it is ignored.
	var raw rawClassification
	if err := json.NewDecoder(strings.NewReader(cleaned[start:])).Decode(&raw); err != nil {
		return rawClassification{}, mferrors.Wrap(mferrors.KindMalformedResponse, "provider reply is not valid JSON", err)
	}

	if err := validateClassification(raw); err != nil {
		return rawClassification{}, err
	}
	return raw, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

var validCategories = map[string]bool{
	"authentication": true, "data-processing": true, "api": true,
	"frontend": true, "config": true, "test": true, "build": true,
	"documentation": true, "other": true,
}

var validRelevance = map[string]bool{"high": true, "medium": true, "low": true}

func validateClassification(raw rawClassification) error {
	if raw.Purpose == "" {
		return mferrors.New(mferrors.KindMalformedResponse, "missing required key \"purpose\"")
	}
	if !validCategories[raw.Category] {
		return mferrors.New(mferrors.KindMalformedResponse, "invalid or missing \"category\": "+raw.Category)
	}
	if !validRelevance[raw.SecurityRelevance] {
		return mferrors.New(mferrors.KindMalformedResponse, "invalid or missing \"security_relevance\": "+raw.SecurityRelevance)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return mferrors.New(mferrors.KindMalformedResponse, "confidence out of range [0,1]")
	}
	return nil
}
