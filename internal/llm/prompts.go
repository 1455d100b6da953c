package llm

import "strings"

// SystemPrompt frames the model as a legal assistant answering in JSON.
const SystemPrompt = "You are a helpful legal assistant that provides analysis in JSON format."

const userPromptTemplate = `Please analyze the following contract and provide:
1. A concise summary of the contract.
2. A list of the key clauses.

Respond only with a JSON object with exactly two keys:
- "summary": a string
- "clauses": a list of strings

Contract text:
{{contract}}`

// BuildPrompt returns the system and user messages for one contract.
// The contract text is embedded verbatim.
func BuildPrompt(contractText string) []Message {
	return []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: strings.Replace(userPromptTemplate, "{{contract}}", contractText, 1)},
	}
}
