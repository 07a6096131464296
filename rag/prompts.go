package rag

import (
	"fmt"
	"strings"

	"notionrag/store"
)

const systemPrompt = `You are an assistant that answers questions about a team's Notion workspace.
Answer using only the information provided in the context. If the context does not contain the answer, say so.
Cite the titles of the pages you drew from. Be concise. Respond in the same language as the question.`

const contextDivider = "\n---\n"

// formatContext renders results in rank order as labeled blocks
// separated by a divider line.
func formatContext(results []store.Result) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("information %d (page: %s)\n%s", i+1, r.PageTitle, r.Text))
	}
	return strings.Join(blocks, contextDivider)
}

func userPrompt(context, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question)
}
