package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEncoder struct {
	tokensPerCall int
}

func (f fixedEncoder) Encode(text string) []int {
	return make([]int, f.tokensPerCall)
}

func TestCountComputesTotalAndCost(t *testing.T) {
	a := NewAccountantWithEncoder(fixedEncoder{tokensPerCall: 100}, nil)

	stats := a.Count("main.go", ".go", "package main", Rates{InputPerThousand: 1.0, OutputPerThousand: 2.0})

	require.Equal(t, 100, stats.ContentTokens)
	require.Equal(t, 100, stats.PromptTokens)
	assert.Equal(t, 250, stats.TotalTokens) // 100 prompt + 150 fixed response
	assert.InDelta(t, 100.0/1000*1.0+150.0/1000*2.0, stats.EstimatedCost, 1e-9)
	assert.False(t, stats.Approximate)
}

func TestApproximateEncoderMarksStats(t *testing.T) {
	a := NewAccountantWithEncoder(approximateEncoder{}, nil)

	stats := a.Count("main.go", ".go", "0123456789012345", Rates{})

	assert.True(t, stats.Approximate)
	assert.Equal(t, 4, stats.ContentTokens) // len("0123456789012345")=16, /4 = 4
}

func TestDefaultPromptTemplateIncludesPathAndContent(t *testing.T) {
	prompt := DefaultPromptTemplate("pkg/main.go", ".go", "package main")
	assert.Contains(t, prompt, "pkg/main.go")
	assert.Contains(t, prompt, "package main")
}
