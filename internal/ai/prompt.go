// prompt.go renders the structured prompt: a fixed instruction block, the
// retrieved document context, and the tenant's display name. The wording of
// the fixed sentences matters; handlers and clients rely on them verbatim.
package ai

import (
	"fmt"
	"strings"

	"github.com/maritime-ai/maritime-ai-backend/internal/search"
)

// NoDocumentsMessage is the exact answer used when nothing relevant exists in
// the tenant's documents. The model is told to reply with this sentence and
// nothing else; the composer also returns it directly when retrieval produces
// zero excerpts.
const NoDocumentsMessage = "Sorry, no relevant information could be found in the provided documents."

// ApologyMessage is the final degradation stage when every model fails.
const ApologyMessage = "We are unable to generate an answer right now. Please try again in a moment."

// SafetyBlockedMessage is shown when the model's answer was withheld by a
// content filter.
const SafetyBlockedMessage = "The response was blocked by a safety filter."

const instructionTemplate = `You are a senior expert with decades of experience in shipping, shipbuilding, and marine equipment. Your task is to give the most accurate, professional answer to the question, based on the documents provided by the client organization.

# Rules:

Role: You are the expert answering the user's question. Keep a professional tone and answer in complete, clear sentences.

Language: Detect the language of the question and answer in that same language.

Grounding: Base your answer strictly on the content given under 'Reference documents'. Do not use prior knowledge or outside information. The provided documents are the only source of truth.

Data isolation: You may only reference documents belonging to %s. Never reference or mention information from any other organization.

# Answer format:

Body: Answer the question in complete sentences.

Citations: Immediately after the answer body, state your sources exactly in this format:

(source: [document name], p.[page number])

Internal information: Never expose system-internal details such as relevance scores.

Missing information: If the reference documents do not contain the answer, reply with exactly this sentence and nothing else:

"%s"

---
### [Input]

**[Organization]:**
%s

**[Reference documents]:**
"""
%s
"""`

// BuildInstructions renders the instruction block for one request.
func BuildInstructions(tenantName, contextText string) string {
	return fmt.Sprintf(instructionTemplate, tenantName, NoDocumentsMessage, tenantName, contextText)
}

// ContextText concatenates excerpts into the reference-documents block.
// Titles and passages only; URIs and ranking internals stay out.
func ContextText(excerpts []search.Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Title, e.Content))
	}
	return strings.Join(parts, "\n\n")
}
