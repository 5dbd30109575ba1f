package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/core/normalize"
	"github.com/agenthands/cobalt/internal/llm"
)

// Linked is a successful knowledge-base match. The zero value means the
// entity stays unlinked.
type Linked struct {
	ID       string
	TypePath []model.TypeRef
}

// Scoring weights for candidate disambiguation. Type agreement dominates,
// context overlap separates homonyms, and the backend's own ranking breaks
// what remains.
const (
	typeWeight    = 0.5
	contextWeight = 0.3
	rankWeight    = 0.2
)

// typeKeywords marks a candidate as type-compatible when its direct types
// or description mention any of them.
var typeKeywords = map[model.EntityType][]string{
	model.TypePerson: {"human", "person"},
	model.TypeOrg:    {"organization", "organisation", "company", "corporation", "agency", "institution", "university", "party", "association"},
	model.TypeGPE:    {"country", "city", "state", "capital", "region", "municipality", "territory", "province"},
}

type Linker struct {
	Searcher  Searcher
	Hierarchy Hierarchy
	Reranker  llm.RerankerClient
	Config    config.KBConfig
}

func NewLinker(s Searcher, h Hierarchy, reranker llm.RerankerClient, cfg config.KBConfig) *Linker {
	return &Linker{
		Searcher:  s,
		Hierarchy: h,
		Reranker:  reranker,
		Config:    cfg,
	}
}

// Link searches the knowledge base for label, disambiguates among the
// candidates, and walks the type hierarchy upward from the winner. An
// unreachable backend or an empty/low-scoring candidate list leaves the
// entity unlinked; only the returned error distinguishes the degraded case
// from a clean no-match, so callers can log it and move on.
func (l *Linker) Link(ctx context.Context, label string, entityType model.EntityType, contexts []string) (Linked, error) {
	candidates, err := l.Searcher.Search(ctx, label, entityType, l.Config.MaxCandidates)
	if err != nil {
		return Linked{}, fmt.Errorf("knowledge-base search failed for %q: %w", label, err)
	}
	if len(candidates) == 0 {
		return Linked{}, nil
	}

	scored := scoreCandidates(candidates, entityType, contexts)
	if scored[0].score < l.Config.DisambiguationThreshold {
		return Linked{}, nil
	}

	best := l.breakTie(ctx, label, entityType, contexts, scored)

	path, err := l.rollUp(ctx, best.candidate)
	if err != nil {
		// The link itself stands; only the hierarchy is truncated.
		return Linked{ID: best.candidate.ID, TypePath: path}, fmt.Errorf("type hierarchy walk failed for %s: %w", best.candidate.ID, err)
	}
	return Linked{ID: best.candidate.ID, TypePath: path}, nil
}

type scoredCandidate struct {
	candidate Candidate
	score     float64
}

func scoreCandidates(candidates []Candidate, entityType model.EntityType, contexts []string) []scoredCandidate {
	ctxTokens := contextTokens(contexts)
	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		s := typeWeight*typeScore(c, entityType) +
			contextWeight*contextScore(c, ctxTokens) +
			rankWeight/float64(1+i)
		scored[i] = scoredCandidate{candidate: c, score: s}
	}
	// Stable keeps the backend's order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored
}

// breakTie re-ranks candidates whose scores sit within the configured
// margin of the best one. Without a reranker, or when it fails, the
// heuristic winner stands.
func (l *Linker) breakTie(ctx context.Context, label string, entityType model.EntityType, contexts []string, scored []scoredCandidate) scoredCandidate {
	if l.Reranker == nil || !l.Config.OracleTieBreak || len(scored) < 2 {
		return scored[0]
	}
	tied := []scoredCandidate{scored[0]}
	for _, s := range scored[1:] {
		if scored[0].score-s.score < l.Config.TieBreakMargin {
			tied = append(tied, s)
		}
	}
	if len(tied) < 2 {
		return scored[0]
	}

	docs := make([]string, len(tied))
	for i, s := range tied {
		docs[i] = fmt.Sprintf("%s: %s", s.candidate.Label, s.candidate.Description)
	}
	query := fmt.Sprintf("%s (%s) %s", label, entityType, strings.Join(contexts, " "))

	ranked, err := l.Reranker.Rank(ctx, query, docs)
	if err != nil || len(ranked) == 0 || ranked[0] < 0 || ranked[0] >= len(tied) {
		return scored[0]
	}
	return tied[ranked[0]]
}

// rollUp builds the ancestor path from the candidate's first direct type,
// following the first parent at each level. The walk stops at the depth
// cap, at the hierarchy's top, or when the next step would revisit a type.
func (l *Linker) rollUp(ctx context.Context, c Candidate) ([]model.TypeRef, error) {
	if len(c.Types) == 0 {
		return nil, nil
	}
	current := c.Types[0]
	path := []model.TypeRef{current}
	seen := map[string]bool{current.ID: true}

	for len(path) < l.Config.MaxHierarchyDepth {
		parents, err := l.Hierarchy.Parents(ctx, current.ID)
		if err != nil {
			return path, err
		}
		next, ok := firstUnseen(parents, seen)
		if !ok {
			break
		}
		path = append(path, next)
		seen[next.ID] = true
		current = next
	}
	return path, nil
}

func firstUnseen(parents []model.TypeRef, seen map[string]bool) (model.TypeRef, bool) {
	for _, p := range parents {
		if p.ID != "" && !seen[p.ID] {
			return p, true
		}
	}
	return model.TypeRef{}, false
}

func typeScore(c Candidate, entityType model.EntityType) float64 {
	keywords, ok := typeKeywords[entityType]
	if !ok {
		return 0.5
	}
	hay := strings.ToLower(c.Description)
	for _, t := range c.Types {
		hay += " " + strings.ToLower(t.Label)
	}
	for _, k := range keywords {
		if strings.Contains(hay, k) {
			return 1
		}
	}
	return 0
}

// contextScore is the fraction of distinguishing context tokens found in
// the candidate's description. No context at all scores neutral rather
// than penalizing every candidate.
func contextScore(c Candidate, ctxTokens []string) float64 {
	if len(ctxTokens) == 0 {
		return 0.5
	}
	desc := " " + strings.Join(normalize.Tokens(c.Description), " ") + " "
	hits := 0
	for _, tok := range ctxTokens {
		if strings.Contains(desc, " "+tok+" ") {
			hits++
		}
	}
	return float64(hits) / float64(len(ctxTokens))
}

// contextTokens folds and dedupes context excerpts, dropping short filler
// words.
func contextTokens(contexts []string) []string {
	var tokens []string
	seen := map[string]bool{}
	for _, c := range contexts {
		for _, tok := range normalize.Tokens(c) {
			if len(tok) < 3 || seen[tok] {
				continue
			}
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
