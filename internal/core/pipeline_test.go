package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/core/resolve"
	"github.com/agenthands/cobalt/internal/kb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptedLLM answers oracle prompts from a fixed script, keyed on the
// "Mentions:" lines rendered for each cluster. Safe for concurrent use.
type scriptedLLM struct {
	pairs  []pairRule
	labels map[string]labelRule
	err    error

	mu    sync.Mutex
	calls int
}

type pairRule struct {
	a, b    string
	verdict string
	label   string
	conf    float64
}

type labelRule struct {
	label string
	conf  float64
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}

	lines := mentionLines(prompt)
	if strings.Contains(prompt, "<MENTION GROUP>") {
		if len(lines) == 1 {
			if r, ok := s.labels[lines[0]]; ok {
				return fmt.Sprintf(`{"canonical_label": %q, "confidence": %v}`, r.label, r.conf), nil
			}
		}
		return `{"canonical_label": "", "confidence": 0}`, nil
	}
	if len(lines) == 2 {
		for _, r := range s.pairs {
			if (r.a == lines[0] && r.b == lines[1]) || (r.a == lines[1] && r.b == lines[0]) {
				return fmt.Sprintf(`{"verdict": %q, "canonical_label": %q, "confidence": %v}`, r.verdict, r.label, r.conf), nil
			}
		}
	}
	return `{"verdict": "UNCERTAIN", "canonical_label": "", "confidence": 0}`, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func mentionLines(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		if payload, ok := strings.CutPrefix(line, "Mentions: "); ok {
			out = append(out, payload)
		}
	}
	return out
}

func testPipeline(script *scriptedLLM, linker *kb.Linker) *Pipeline {
	cfg := config.Default()
	cfg.Concurrency.OracleWorkers = 2
	cfg.Concurrency.LinkWorkers = 2
	oracle := resolve.NewOracle(script, cfg.Resolution.Prompts, nil)
	return NewPipeline(oracle, linker, cfg, nil)
}

func feedMention(id, surface string, t model.EntityType, start, end int) model.Mention {
	return model.Mention{ID: id, Surface: surface, Type: t, Start: start, End: end, Confidence: 0.9}
}

func entityByLabel(t *testing.T, result *model.Result, label string) model.CanonicalEntity {
	t.Helper()
	for _, e := range result.Entities {
		if e.Label == label {
			return e
		}
	}
	t.Fatalf("no entity labeled %q", label)
	return model.CanonicalEntity{}
}

func memberSurfaces(e model.CanonicalEntity) []string {
	out := make([]string, 0, len(e.Members))
	for _, m := range e.Members {
		out = append(out, m.Surface)
	}
	sort.Strings(out)
	return out
}

func obamaDocument() model.Document {
	text := "Barack Obama met with Michelle Obama. Obama spoke first."
	return model.Document{
		Text: text,
		Mentions: []model.Mention{
			feedMention("m1", "Barack Obama", model.TypePerson, 0, 12),
			feedMention("m2", "Michelle Obama", model.TypePerson, 22, 36),
			feedMention("m3", "Obama", model.TypePerson, 38, 43),
		},
	}
}

func obamaScript() *scriptedLLM {
	return &scriptedLLM{pairs: []pairRule{
		{a: "Barack Obama", b: "Obama", verdict: "SAME", label: "Barack Obama", conf: 0.9},
		{a: "Barack Obama", b: "Michelle Obama", verdict: "DIFFERENT", conf: 0.95},
		{a: "Obama", b: "Michelle Obama", verdict: "SAME", label: "Obama", conf: 0.7},
	}}
}

func TestResolveSeparatesVetoedNamesakes(t *testing.T) {
	script := obamaScript()
	p := testPipeline(script, nil)

	result, err := p.Resolve(context.Background(), obamaDocument())
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)

	barack := entityByLabel(t, result, "Barack Obama")
	assert.Equal(t, []string{"Barack Obama", "Obama"}, memberSurfaces(barack))

	michelle := entityByLabel(t, result, "Michelle Obama")
	assert.Equal(t, []string{"Michelle Obama"}, memberSurfaces(michelle))

	// One oracle call per cluster pair in the group.
	assert.Equal(t, 3, script.callCount())
}

func TestResolveIsIdempotent(t *testing.T) {
	first, err := testPipeline(obamaScript(), nil).Resolve(context.Background(), obamaDocument())
	require.NoError(t, err)
	second, err := testPipeline(obamaScript(), nil).Resolve(context.Background(), obamaDocument())
	require.NoError(t, err)

	ids := func(r *model.Result) []string {
		var out []string
		for _, e := range r.Entities {
			out = append(out, e.ID)
		}
		sort.Strings(out)
		return out
	}
	assert.Equal(t, ids(first), ids(second))
}

func TestResolveEmptyDocument(t *testing.T) {
	script := &scriptedLLM{}
	p := testPipeline(script, nil)

	result, err := p.Resolve(context.Background(), model.Document{})
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Zero(t, script.callCount())
}

func TestResolveSingletonPassthrough(t *testing.T) {
	script := &scriptedLLM{}
	p := testPipeline(script, nil)

	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "Acme Corp", model.TypeOrg, 0, 9),
	}}
	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	e := result.Entities[0]
	assert.Equal(t, "Acme Corp", e.Label)
	assert.False(t, e.Linked())
	assert.Zero(t, script.callCount())
}

func TestResolveDropsInvalidAndDuplicateMentions(t *testing.T) {
	p := testPipeline(&scriptedLLM{}, nil)

	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "NATO", model.TypeOrg, 0, 4),
		feedMention("m2", "", model.TypeOrg, 5, 9),
		feedMention("m1", "NATO", model.TypeOrg, 10, 14),
	}}
	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.Len(t, result.Entities[0].Members, 1)
}

func TestResolveIngestFilters(t *testing.T) {
	script := &scriptedLLM{}
	p := testPipeline(script, nil)
	p.Config.Resolution.MinMentionConfidence = 0.5
	p.Config.Resolution.EntityTypes = []string{"PERSON"}

	weak := feedMention("m2", "Ada Lovelace", model.TypePerson, 0, 0)
	weak.Confidence = 0.3
	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "Grace Hopper", model.TypePerson, 0, 0),
		weak,
		feedMention("m3", "IBM", model.TypeOrg, 0, 0),
	}}

	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Grace Hopper", result.Entities[0].Label)
}

func TestResolveRefinesLoneClusterLabel(t *testing.T) {
	// Diacritic folding puts both spellings in one cluster, so the only
	// oracle work is choosing the label.
	script := &scriptedLLM{labels: map[string]labelRule{
		"José García; Jose Garcia": {label: "José García", conf: 0.9},
	}}
	p := testPipeline(script, nil)

	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "José García", model.TypePerson, 0, 0),
		feedMention("m2", "Jose Garcia", model.TypePerson, 0, 0),
	}}
	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "José García", result.Entities[0].Label)
	assert.Equal(t, 1, script.callCount())
}

func TestResolveKeepsClustersApartWhenOracleFails(t *testing.T) {
	script := &scriptedLLM{err: errors.New("backend down")}
	p := testPipeline(script, nil)

	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "John Smith", model.TypePerson, 0, 0),
		feedMention("m2", "J. Smith", model.TypePerson, 0, 0),
	}}
	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)

	// Degraded decisions are UNCERTAIN, which never merges.
	assert.Len(t, result.Entities, 2)
}

// fakeKB serves both the search and hierarchy sides of the linker.
type fakeKB struct {
	hits    map[string][]kb.Candidate
	parents map[string][]model.TypeRef
}

func (f *fakeKB) Search(_ context.Context, label string, _ model.EntityType, _ int) ([]kb.Candidate, error) {
	return f.hits[label], nil
}

func (f *fakeKB) Parents(_ context.Context, typeID string) ([]model.TypeRef, error) {
	return f.parents[typeID], nil
}

func TestResolveLinksEntities(t *testing.T) {
	backend := &fakeKB{
		hits: map[string][]kb.Candidate{
			"Barack Obama": {{
				ID:          "Q76",
				Label:       "Barack Obama",
				Description: "president of the United States",
				Types:       []model.TypeRef{{ID: "Q5", Label: "human"}},
			}},
		},
		parents: map[string][]model.TypeRef{
			"Q5": {{ID: "Q215627", Label: "person"}},
		},
	}
	cfg := config.Default()
	linker := kb.NewLinker(backend, backend, nil, cfg.KB)
	p := testPipeline(&scriptedLLM{}, linker)

	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "Barack Obama", model.TypePerson, 0, 0),
	}}
	result, err := p.Resolve(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	e := result.Entities[0]
	assert.Equal(t, "Q76", e.KBID)
	require.Len(t, e.TypePath, 2)
	assert.Equal(t, "Q5", e.TypePath[0].ID)
	assert.Equal(t, "Q215627", e.TypePath[1].ID)

	assert.Len(t, result.RollDown("Q215627"), 1)
	assert.Equal(t, e.TypePath, result.RollUp(e.ID))
}

func TestResolvePartitionsEveryMention(t *testing.T) {
	result, err := testPipeline(obamaScript(), nil).Resolve(context.Background(), obamaDocument())
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, e := range result.Entities {
		for _, m := range e.Members {
			counts[m.ID]++
		}
	}
	assert.Equal(t, map[string]int{"m1": 1, "m2": 1, "m3": 1}, counts)
}

func TestResolveHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPipeline(&scriptedLLM{}, nil)
	doc := model.Document{Mentions: []model.Mention{
		feedMention("m1", "John Smith", model.TypePerson, 0, 0),
		feedMention("m2", "J. Smith", model.TypePerson, 0, 0),
	}}

	_, err := p.Resolve(ctx, doc)
	require.ErrorIs(t, err, context.Canceled)
}
