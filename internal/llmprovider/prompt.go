package llmprovider

import (
	"fmt"
	"strings"
)

// SystemPrompt establishes the role every provider sends as the system
// message — the wire-level contract in spec §6.
const SystemPrompt = `You are a senior code and security reviewer. You analyze ` +
	`individual source files and produce a structured assessment of their ` +
	`purpose, category, and security relevance. You respond only with a ` +
	`single strict JSON object and no other text.`

// truncationMarker is appended to content that exceeds a provider's token
// budget, so the response can't be mistaken for a complete read of the file.
const truncationMarker = "\n\n... [content truncated for token budget] ..."

// BuildUserPrompt renders the user prompt for one file. maxContentChars
// approximates the provider's token budget for content; 0 means unlimited.
func BuildUserPrompt(path, extension, content string, maxContentChars int) string {
	if maxContentChars > 0 && len(content) > maxContentChars {
		content = content[:maxContentChars] + truncationMarker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File path: %s\n", path)
	fmt.Fprintf(&b, "Extension: %s\n\n", extension)
	b.WriteString("File content:\n```\n")
	b.WriteString(content)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with a strict JSON object with exactly these keys:\n")
	b.WriteString(`  "purpose": a plain-language summary of the file's purpose, 100 words or fewer` + "\n")
	b.WriteString(`  "category": one of authentication, data-processing, api, frontend, config, test, build, documentation, other` + "\n")
	b.WriteString(`  "confidence": a number between 0 and 1` + "\n")
	b.WriteString(`  "security_relevance": one of high, medium, low` + "\n")
	b.WriteString(`  "reasoning": a brief explanation of the classification` + "\n")
	b.WriteString("Return only the JSON object, no markdown fences, no explanation text.\n")
	return b.String()
}
