package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const systemPrompt = `You are a document classification assistant helping to organize a personal document library.

Your task is to analyze documents and provide structured metadata including:
- Document type: choose strictly from the provided list, preferring the most specific applicable type
- A clear, descriptive title
- Suggested canonical filename in the form YYYY-MM-DD-Category-Issuer-Description, hyphens between fields, underscores within a field
- Family member name suffixes only on documents specific to one person, and only names from the provided list
- Relevant tags from the provided list
- Target taxonomy folder path
- Date (if discernible)
- Issuer/source (if applicable)
- Confidence score: 0.9+ when type, date, and issuer are all evident; 0.7-0.9 when type is clear but details are missing; below 0.7 when the type itself is uncertain
- Brief explanation of your reasoning

Be precise and consistent. When uncertain, express lower confidence rather than guessing.
Always respond with valid JSON only, no additional text.`

// promptMaxChars bounds the extracted-text excerpt in the user prompt.
const promptMaxChars = 8000

// truncateForPrompt keeps the first 70% and last 30% of the budget; the
// head of a document names it and the tail often carries totals and
// signatures.
func truncateForPrompt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	head := max * 7 / 10
	tail := max - head
	return string(runes[:head]) + "[... middle section omitted ...]" + string(runes[len(runes)-tail:])
}

// BuildUserPrompt renders the labeling request for one document.
func BuildUserPrompt(ctx LabelingContext) string {
	excerpt := truncateForPrompt(ctx.ExtractedText, promptMaxChars)
	if excerpt == "" {
		excerpt = "[No text extracted]"
	}
	mime := ctx.MimeType
	if mime == "" {
		mime = "unknown"
	}

	var taxonomy strings.Builder
	for _, t := range ctx.Taxonomy {
		fmt.Fprintf(&taxonomy, "  - %s\n", t)
	}

	return fmt.Sprintf(`Analyze this document and provide classification metadata.

DOCUMENT INFORMATION:
- Filename: %s
- Parent folders: %s
- File size: %d bytes
- MIME type: %s

EXTRACTED TEXT (first %d chars):
%s

AVAILABLE DOCUMENT TYPES:
%s

AVAILABLE TAXONOMY:
%s
SUGGESTED TAGS:
%s

FAMILY MEMBERS:
%s

OUTPUT FORMAT:
Respond with ONLY a JSON object matching this schema:
{
  "doc_type": "<type from available list>",
  "title": "<descriptive title>",
  "canonical_filename": "<YYYY-MM-DD-Category-Issuer-Description format without extension>",
  "suggested_tags": ["<tag1>", "<tag2>"],
  "target_group_path": "<taxonomy path, e.g., '03 Financial/Bank Statements'>",
  "date": "<YYYY-MM-DD or null>",
  "issuer": "<issuer/source name or null>",
  "source": "<additional source info or null>",
  "confidence": <0.0 to 1.0>,
  "why": "<1-2 sentence explanation>"
}

Respond with ONLY the JSON, no markdown formatting, no additional text.`,
		ctx.Filename,
		strings.Join(ctx.ParentFolders, " > "),
		ctx.FileSize,
		mime,
		promptMaxChars,
		excerpt,
		strings.Join(ctx.DocTypes, ", "),
		taxonomy.String(),
		strings.Join(ctx.Tags, ", "),
		strings.Join(ctx.FamilyMembers, ", "),
	)
}

// PromptVersion hashes the system prompt plus a structural rendering of
// the user prompt (placeholder context, no document data) and keeps the
// first 16 hex characters. Stored on every label row so consumers can tell
// when the prompt changed.
func PromptVersion() string {
	structural := BuildUserPrompt(LabelingContext{
		Filename:      "example.pdf",
		ParentFolders: []string{"folder"},
		FileSize:      1000,
		DocTypes:      []string{"type"},
		Tags:          []string{"tag"},
		Taxonomy:      []string{"01 Category"},
		FamilyMembers: []string{"name"},
	})
	sum := sha256.Sum256([]byte(systemPrompt + "\n\n" + structural))
	return hex.EncodeToString(sum[:])[:16]
}
