package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

const rerankDocLimit = 200

// SimpleLLMReranker orders documents with a single ranking prompt. It is
// used to break ties between knowledge-base candidates whose heuristic
// scores are too close to call.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	docList := ""
	for i, d := range docs {
		content := d
		if len(content) > rerankDocLimit {
			content = content[:rerankDocLimit] + "..."
		}
		docList += fmt.Sprintf("[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You are a search relevance optimization system.
Query: %s

Documents:
%s

Rank the documents above based on their relevance to the query.
Output ONLY the indices of the documents in order of relevance, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList)

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		// Ties fall back to the incoming order rather than failing the link.
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}
	return parseIndices(resp, len(docs)), nil
}

// parseIndices extracts in-range indices from the model's reply, first
// occurrence wins.
func parseIndices(s string, n int) []int {
	re := regexp.MustCompile(`\d+`)
	matches := re.FindAllString(s, -1)
	var indices []int
	seen := make(map[int]bool)
	for _, m := range matches {
		i, err := strconv.Atoi(m)
		if err != nil || i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		indices = append(indices, i)
	}
	return indices
}
