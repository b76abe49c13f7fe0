package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification_Clean(t *testing.T) {
	reply := `{"purpose":"Handles login","category":"authentication","confidence":0.9,"security_relevance":"high","reasoning":"touches credentials"}`

	raw, err := ParseClassification(reply)
	require.NoError(t, err)
	assert.Equal(t, "authentication", raw.Category)
	assert.Equal(t, "high", raw.SecurityRelevance)
	assert.InDelta(t, 0.9, raw.Confidence, 1e-9)
}

func TestParseClassification_StripsFencesAndProse(t *testing.T) {
	reply := "Sure, here is the classification:\n```json\n" +
		`{"purpose":"Parses config","category":"config","confidence":0.7,"security_relevance":"low","reasoning":"no secrets"}` +
		"\n```\nLet me know if you need anything else."

	raw, err := ParseClassification(reply)
	require.NoError(t, err)
	assert.Equal(t, "config", raw.Category)
}

func TestParseClassification_InvalidJSON(t *testing.T) {
	_, err := ParseClassification("not json at all")
	assert.Error(t, err)
}

func TestParseClassification_InvalidCategory(t *testing.T) {
	reply := `{"purpose":"x","category":"nonsense","confidence":0.5,"security_relevance":"low","reasoning":"y"}`
	_, err := ParseClassification(reply)
	assert.Error(t, err)
}

func TestParseClassification_ConfidenceOutOfRange(t *testing.T) {
	reply := `{"purpose":"x","category":"other","confidence":1.5,"security_relevance":"low","reasoning":"y"}`
	_, err := ParseClassification(reply)
	assert.Error(t, err)
}

func TestParseClassification_MissingPurpose(t *testing.T) {
	reply := `{"purpose":"","category":"other","confidence":0.5,"security_relevance":"low","reasoning":"y"}`
	_, err := ParseClassification(reply)
	assert.Error(t, err)
}
