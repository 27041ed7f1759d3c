package openai

import (
	"fmt"
	"strings"

	"github.com/corvid-labs/sectra/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "category": {"type": "string"},
          "attrs": {"type": "object", "additionalProperties": {"type": "string"}}
        },
        "required": ["text", "category"],
        "additionalProperties": false
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "category": {"type": "string"},
          "predicate": {"type": "string"},
          "subject": {"type": "integer"},
          "object": {"type": "integer"},
          "object_ref": {"type": "string"},
          "condition": {"type": "string"},
          "text": {"type": "string"}
        },
        "required": ["category", "predicate", "subject"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relationships"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract entities and the relationships between them from the given procedural or legal text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Each entity "text" must be an EXACT verbatim quote from the input, preserving case and punctuation. Never paraphrase.
- Entity "category" must match exactly one of: %s.
- Relationship "category" must match exactly one of: %s. Use "generic" when no other fits.
- "subject" and "object" are zero-based indices into the "entities" array.
- Use "object_ref" instead of "object" when the target is named but not quoted in this text, e.g. a cited statute or an external form.
- "predicate" is a short verb phrase from the text, e.g. "shall send", "may object", "is revoked by".
- "condition" carries the triggering condition when the text states one ("if the debtor fails to...", "unless..."), otherwise omit it.
- Relationship "text" is the verbatim clause expressing the relationship, when one clause does.
- Include only what the text states. Do not hallucinate entities or relationships.
- If nothing can be extracted, return "entities": [] and "relationships": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "The trustee shall send the notice of claim to each known creditor within 30 days. If the creditor fails to respond, the claim is barred."
Output:
{
  "entities": [
    {"text":"trustee","category":"actor"},
    {"text":"notice of claim","category":"document-reference"},
    {"text":"creditor","category":"actor"},
    {"text":"within 30 days","category":"deadline"},
    {"text":"the claim is barred","category":"consequence"}
  ],
  "relationships": [
    {"category":"deontic-obligation","predicate":"shall send","subject":0,"object":1,"text":"The trustee shall send the notice of claim"},
    {"category":"legal-effect","predicate":"is barred","subject":2,"object":4,"condition":"If the creditor fails to respond"}
  ]
}

Example (statutory citation without a quoted target):
Input: "An objection under section 502(b) must be filed before the hearing."
Output:
{
  "entities": [
    {"text":"objection","category":"procedure"},
    {"text":"section 502(b)","category":"statutory-reference"},
    {"text":"before the hearing","category":"deadline"}
  ],
  "relationships": [
    {"category":"cross-source-reference","predicate":"under","subject":0,"object":1},
    {"category":"constraint","predicate":"must be filed","subject":0,"object_ref":"hearing"}
  ]
}`

// buildSystemPrompt creates the system prompt with the category taxonomies embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityCategories, ", "),
		strings.Join(ai.RelationshipCategories, ", "))
}
