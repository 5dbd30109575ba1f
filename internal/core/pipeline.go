// Package core wires the resolution stages into one pipeline: ingest the
// recognizer feed, group mentions into candidate clusters, resolve cluster
// pairs through the oracle, merge under veto constraints, assemble canonical
// entities, and link them to the knowledge base.
package core

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core/assemble"
	"github.com/agenthands/cobalt/internal/core/common"
	"github.com/agenthands/cobalt/internal/core/grouper"
	"github.com/agenthands/cobalt/internal/core/merge"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/core/normalize"
	"github.com/agenthands/cobalt/internal/core/resolve"
	"github.com/agenthands/cobalt/internal/kb"
)

const (
	// evidenceContexts caps the source excerpts collected per cluster.
	evidenceContexts = 3
	// contextExcerptRunes caps the length of a single excerpt.
	contextExcerptRunes = 500
)

type Pipeline struct {
	Oracle *resolve.Oracle
	Linker *kb.Linker // nil disables knowledge-base linking
	Config *config.Config
	Logger *zap.Logger
}

func NewPipeline(oracle *resolve.Oracle, linker *kb.Linker, cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Oracle: oracle,
		Linker: linker,
		Config: cfg,
		Logger: logger,
	}
}

// Resolve runs the full pipeline over one document. Oracle and linker
// failures degrade individual decisions or links and are logged, never
// propagated; the only errors returned are context cancellation and a
// violated partition invariant.
func (p *Pipeline) Resolve(ctx context.Context, doc model.Document) (*model.Result, error) {
	mentions := p.ingest(doc)
	groups := grouper.Group(mentions)

	decisions, err := p.judge(ctx, doc, mentions, groups)
	if err != nil {
		return nil, err
	}

	merged := merge.Merge(groups, decisions, p.Config.Resolution.MergeThreshold)
	entities := assemble.Entities(mentions, merged)

	linked, err := p.link(ctx, doc, entities)
	if err != nil {
		return nil, err
	}

	result, err := assemble.Finalize(mentions, entities)
	if err != nil {
		return nil, err
	}

	p.Logger.Info("document resolved",
		zap.Int("mentions", len(mentions)),
		zap.Int("groups", len(groups)),
		zap.Int("decisions", len(decisions)),
		zap.Int("entities", len(entities)),
		zap.Int("linked", linked),
	)
	return result, nil
}

// ingest validates and filters the recognizer feed. Invalid mentions and
// duplicate IDs are dropped with a warning; the confidence and type filters
// default to accepting everything. Normalized forms missing from the feed
// are computed here so grouping never sees an unfolded surface.
func (p *Pipeline) ingest(doc model.Document) []model.Mention {
	res := p.Config.Resolution

	var accept map[model.EntityType]bool
	if len(res.EntityTypes) > 0 {
		accept = make(map[model.EntityType]bool, len(res.EntityTypes))
		for _, t := range res.EntityTypes {
			accept[model.EntityType(t)] = true
		}
	}

	seen := make(map[string]bool, len(doc.Mentions))
	var out []model.Mention
	for _, m := range doc.Mentions {
		m.EnsureID()
		if err := m.Validate(); err != nil {
			p.Logger.Warn("dropping invalid mention", zap.Error(err))
			continue
		}
		if seen[m.ID] {
			p.Logger.Warn("dropping duplicate mention id", zap.String("id", m.ID))
			continue
		}
		seen[m.ID] = true
		if m.Confidence < res.MinMentionConfidence {
			continue
		}
		if accept != nil && !accept[m.Type] {
			continue
		}
		if m.Normalized == "" {
			m.Normalized = normalize.Fold(m.Surface)
		}
		out = append(out, m)
	}
	return out
}

// judge collects oracle decisions: one per cluster pair within each group,
// plus a label refinement for lone clusters that cover several distinct
// surfaces. Workers write into a pre-sized slice so the output order does
// not depend on scheduling.
func (p *Pipeline) judge(ctx context.Context, doc model.Document, mentions []model.Mention, groups []model.CandidateGroup) ([]model.Decision, error) {
	byID := make(map[string]model.Mention, len(mentions))
	for _, m := range mentions {
		byID[m.ID] = m
	}

	type pairTask struct {
		a, b resolve.ClusterEvidence
	}
	var pairs []pairTask
	var singles []resolve.ClusterEvidence

	radius := p.Config.Resolution.ContextRadius
	for _, g := range groups {
		if len(g.Clusters) == 1 {
			ev := clusterEvidence(doc, byID, g.Clusters[0], radius)
			if len(ev.Surfaces) > 1 {
				singles = append(singles, ev)
			}
			continue
		}
		evs := make([]resolve.ClusterEvidence, len(g.Clusters))
		for i, c := range g.Clusters {
			evs[i] = clusterEvidence(doc, byID, c, radius)
		}
		for i := 0; i < len(evs); i++ {
			for j := i + 1; j < len(evs); j++ {
				pairs = append(pairs, pairTask{a: evs[i], b: evs[j]})
			}
		}
	}
	if len(pairs)+len(singles) == 0 {
		return nil, nil
	}

	decisions := make([]model.Decision, len(pairs)+len(singles))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.Config.Concurrency.OracleWorkers)
	for i, pt := range pairs {
		eg.Go(func() error {
			d, err := p.Oracle.JudgePair(gctx, pt.a, pt.b)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.Logger.Warn("oracle pair decision degraded",
					zap.String("cluster_a", pt.a.Cluster.ID),
					zap.String("cluster_b", pt.b.Cluster.ID),
					zap.Error(err))
			}
			decisions[i] = d
			return nil
		})
	}
	for i, ev := range singles {
		idx := len(pairs) + i
		eg.Go(func() error {
			d, err := p.Oracle.RefineLabel(gctx, ev)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.Logger.Warn("label refinement degraded",
					zap.String("cluster", ev.Cluster.ID),
					zap.Error(err))
			}
			decisions[idx] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// link attaches knowledge-base identifiers and type paths in place and
// returns how many entities were linked.
func (p *Pipeline) link(ctx context.Context, doc model.Document, entities []model.CanonicalEntity) (int, error) {
	if p.Linker == nil || len(entities) == 0 {
		return 0, nil
	}

	radius := p.Config.Resolution.ContextRadius
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.Config.Concurrency.LinkWorkers)
	for i := range entities {
		eg.Go(func() error {
			e := &entities[i]
			linked, err := p.Linker.Link(gctx, e.Label, e.Type, memberContexts(doc, e.Members, radius))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.Logger.Warn("knowledge-base linking degraded",
					zap.String("entity", e.Label),
					zap.Error(err))
			}
			if linked.ID != "" {
				e.KBID = linked.ID
				e.TypePath = linked.TypePath
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for i := range entities {
		if entities[i].Linked() {
			count++
		}
	}
	return count, nil
}

// clusterEvidence gathers what the oracle sees of one cluster: unique
// surfaces in feed order and a few source excerpts around its mentions.
func clusterEvidence(doc model.Document, byID map[string]model.Mention, c model.CandidateCluster, radius int) resolve.ClusterEvidence {
	ev := resolve.ClusterEvidence{Cluster: c}
	seen := make(map[string]bool, len(c.MentionIDs))
	for _, id := range c.MentionIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		if !seen[m.Surface] {
			seen[m.Surface] = true
			ev.Surfaces = append(ev.Surfaces, m.Surface)
		}
		if len(ev.Contexts) < evidenceContexts {
			if window := doc.Context(m, radius); window != "" {
				ev.Contexts = append(ev.Contexts, common.Excerpt(window, contextExcerptRunes))
			}
		}
	}
	return ev
}

func memberContexts(doc model.Document, members []model.Mention, radius int) []string {
	var out []string
	for _, m := range members {
		if len(out) == evidenceContexts {
			break
		}
		if window := doc.Context(m, radius); window != "" {
			out = append(out, common.Excerpt(window, contextExcerptRunes))
		}
	}
	return out
}
