// Package functions assembles the tools enabled on a Live session.
package functions

import "google.golang.org/genai"

// BuildTools returns the tool set for a new Live session. Search grounding
// runs server-side at Google; it produces no client-executed function calls.
func BuildTools(searchGrounding bool) []*genai.Tool {
	var tools []*genai.Tool
	if searchGrounding {
		tools = append(tools, &genai.Tool{
			GoogleSearch: &genai.GoogleSearch{},
		})
	}
	return tools
}
