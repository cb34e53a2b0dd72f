package llm

import "fmt"

// entityExtractionPrompt instructs the model to return JSON only. The type
// list must stay in sync with the constants in pkg/types.
const entityExtractionPrompt = `Extract named entities from the following text.

Categories:
- PERSON: people's names
- ORG: companies, teams, institutions
- LOCATION: places, cities, countries
- TECH: technologies, tools, languages, frameworks, products
- CONCEPT: abstract topics or ideas under discussion
- EVENT: meetings, releases, incidents, dated occurrences

For each entity provide a confidence score between 0.0 and 1.0 and a short
context phrase showing how it was mentioned.

Respond with ONLY valid JSON in this exact format, no other text:
{
  "entities": [
    {"name": "Kubernetes", "type": "TECH", "confidence": 0.95, "context": "deploying on Kubernetes"}
  ]
}

If the text contains no entities, respond with {"entities": []}.

Text:
%s`

// buildExtractionPrompt fills the extraction template with the target text.
func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(entityExtractionPrompt, text)
}
