// Package resolve adapts an LLM into the pairwise entity-resolution oracle.
// Every reply is validated before use; anything malformed degrades to an
// UNCERTAIN verdict with zero confidence so a misbehaving model can bias
// the pipeline toward keeping clusters apart, never toward merging them.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/cobalt/internal/cache"
	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core/common"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/llm"
)

// ClusterEvidence is what the oracle sees of one candidate cluster: its
// unique surfaces in feed order and up to a few source excerpts.
type ClusterEvidence struct {
	Cluster  model.CandidateCluster
	Surfaces []string
	Contexts []string
}

type Oracle struct {
	LLM     llm.LLMClient
	Prompts config.ResolutionPrompts
	Cache   cache.Cache
}

func NewOracle(llmClient llm.LLMClient, prompts config.ResolutionPrompts, c cache.Cache) *Oracle {
	return &Oracle{
		LLM:     llmClient,
		Prompts: prompts,
		Cache:   c,
	}
}

type decisionPayload struct {
	Verdict        string  `json:"verdict"`
	CanonicalLabel string  `json:"canonical_label"`
	Confidence     float64 `json:"confidence"`
}

// JudgePair asks whether two candidate clusters name one real-world entity.
// It always returns a usable decision: on any failure the decision is
// UNCERTAIN with confidence 0 and the error reports why, so callers can log
// the degradation and keep going.
func (o *Oracle) JudgePair(ctx context.Context, a, b ClusterEvidence) (model.Decision, error) {
	template := o.Prompts.Pair
	if template == "" {
		template = defaultPairPrompt
	}
	prompt := fmt.Sprintf(template, renderEvidence(a), renderEvidence(b))

	fallback := model.Uncertain(a.Cluster.ID, b.Cluster.ID)

	response, err := o.generate(ctx, prompt)
	if err != nil {
		return fallback, fmt.Errorf("pair resolution failed: %w", err)
	}
	payload, err := common.ParseJSON[decisionPayload](response)
	if err != nil {
		return fallback, fmt.Errorf("failed to parse resolution verdict: %w", err)
	}

	verdict := model.Verdict(strings.ToUpper(strings.TrimSpace(payload.Verdict)))
	if !model.ValidVerdict(verdict) {
		return fallback, fmt.Errorf("oracle returned unknown verdict %q", payload.Verdict)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return fallback, fmt.Errorf("oracle returned out-of-range confidence %v", payload.Confidence)
	}

	return model.Decision{
		ClusterA:   a.Cluster.ID,
		ClusterB:   b.Cluster.ID,
		Verdict:    verdict,
		Label:      strings.TrimSpace(payload.CanonicalLabel),
		Confidence: payload.Confidence,
	}, nil
}

// RefineLabel picks a canonical label for a cluster that faced no pairwise
// decisions. The degraded fallback carries no label; callers fall back to
// the longest member surface.
func (o *Oracle) RefineLabel(ctx context.Context, e ClusterEvidence) (model.Decision, error) {
	template := o.Prompts.Label
	if template == "" {
		template = defaultLabelPrompt
	}
	prompt := fmt.Sprintf(template, renderEvidence(e))

	fallback := model.Uncertain(e.Cluster.ID, "")

	response, err := o.generate(ctx, prompt)
	if err != nil {
		return fallback, fmt.Errorf("label refinement failed: %w", err)
	}
	payload, err := common.ParseJSON[decisionPayload](response)
	if err != nil {
		return fallback, fmt.Errorf("failed to parse label result: %w", err)
	}

	label := strings.TrimSpace(payload.CanonicalLabel)
	if label == "" {
		return fallback, fmt.Errorf("oracle returned empty canonical label")
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return fallback, fmt.Errorf("oracle returned out-of-range confidence %v", payload.Confidence)
	}

	return model.Decision{
		ClusterA:   e.Cluster.ID,
		Verdict:    model.VerdictSame,
		Label:      label,
		Confidence: payload.Confidence,
	}, nil
}

// generate runs the prompt through the cache, then the model. Cache write
// failures never block resolution.
func (o *Oracle) generate(ctx context.Context, prompt string) (string, error) {
	key := ""
	if o.Cache != nil {
		key = cache.Key("resolve", prompt)
		if cached, ok := o.Cache.Get(ctx, key); ok {
			return cached, nil
		}
	}
	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if o.Cache != nil {
		_ = o.Cache.Set(ctx, key, response)
	}
	return response, nil
}
