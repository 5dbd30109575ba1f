// Package merge turns oracle decisions into the final partition of candidate
// clusters. SAME decisions at or above the confidence threshold connect
// clusters; an explicit DIFFERENT verdict between two clusters vetoes their
// merge even when a chain of SAME edges would transitively connect them.
package merge

import (
	"sort"

	"github.com/agenthands/cobalt/internal/core/common"
	"github.com/agenthands/cobalt/internal/core/model"
)

// Merged is one final cluster: the candidate clusters it absorbed, the
// union of their mentions, and the oracle's canonical label when one of
// its decisions supplied a label.
type Merged struct {
	Type       model.EntityType
	ClusterIDs []string
	MentionIDs []string
	Label      string
}

// Merge computes the final partition. Unions are applied in descending
// confidence order with cluster-ID pairs as the tie-break, and a union is
// skipped when it would place any DIFFERENT pair in one component, so the
// outcome is deterministic and no component ever contains a vetoed pair.
// Decisions naming unknown clusters are ignored.
func Merge(groups []model.CandidateGroup, decisions []model.Decision, threshold float64) []Merged {
	var clusters []model.CandidateCluster
	for _, g := range groups {
		clusters = append(clusters, g.Clusters...)
	}
	if len(clusters) == 0 {
		return nil
	}
	idx := make(map[string]int, len(clusters))
	for i, c := range clusters {
		idx[c.ID] = i
	}

	type edge struct {
		a, b     int
		conf     float64
		aID, bID string
	}

	var positives []edge
	var negatives []vetoPair
	for _, d := range decisions {
		if d.ClusterA == "" || d.ClusterB == "" {
			continue
		}
		ia, ok := idx[d.ClusterA]
		if !ok {
			continue
		}
		ib, ok := idx[d.ClusterB]
		if !ok || ia == ib {
			continue
		}
		switch d.Verdict {
		case model.VerdictSame:
			if d.Confidence >= threshold {
				positives = append(positives, edge{a: ia, b: ib, conf: d.Confidence, aID: d.ClusterA, bID: d.ClusterB})
			}
		case model.VerdictDifferent:
			// A veto holds at any confidence.
			negatives = append(negatives, vetoPair{a: ia, b: ib})
		}
	}

	sort.Slice(positives, func(i, j int) bool {
		if positives[i].conf != positives[j].conf {
			return positives[i].conf > positives[j].conf
		}
		if positives[i].aID != positives[j].aID {
			return positives[i].aID < positives[j].aID
		}
		return positives[i].bID < positives[j].bID
	})

	uf := common.NewDisjointSet(len(clusters))
	for _, e := range positives {
		ra, rb := uf.Find(e.a), uf.Find(e.b)
		if ra == rb {
			continue
		}
		if joinsVetoedPair(uf, negatives, ra, rb) {
			continue
		}
		uf.Union(e.a, e.b)
	}

	labels := collectLabels(decisions, idx, uf, threshold)

	byRoot := make(map[int][]int)
	for i := range clusters {
		root := uf.Find(i)
		byRoot[root] = append(byRoot[root], i)
	}
	roots := make([]int, 0, len(byRoot))
	for root := range byRoot {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return byRoot[roots[i]][0] < byRoot[roots[j]][0] })

	merged := make([]Merged, 0, len(roots))
	for _, root := range roots {
		members := byRoot[root]
		m := Merged{
			Type:  clusters[members[0]].Type,
			Label: bestLabel(labels[root]),
		}
		for _, i := range members {
			m.ClusterIDs = append(m.ClusterIDs, clusters[i].ID)
			m.MentionIDs = append(m.MentionIDs, clusters[i].MentionIDs...)
		}
		merged = append(merged, m)
	}
	return merged
}

type vetoPair struct{ a, b int }

// joinsVetoedPair reports whether uniting the components rooted at ra and
// rb would co-locate any DIFFERENT pair.
func joinsVetoedPair(uf *common.DisjointSet, negatives []vetoPair, ra, rb int) bool {
	for _, n := range negatives {
		x, y := uf.Find(n.a), uf.Find(n.b)
		if (x == ra && y == rb) || (x == rb && y == ra) {
			return true
		}
	}
	return false
}

type labelCandidate struct {
	conf  float64
	label string
}

// collectLabels gathers labeled SAME decisions per final component. A pair
// decision counts only when both endpoints actually merged; a single-cluster
// decision always labels its cluster's component.
func collectLabels(decisions []model.Decision, idx map[string]int, uf *common.DisjointSet, threshold float64) map[int][]labelCandidate {
	labels := make(map[int][]labelCandidate)
	for _, d := range decisions {
		if d.Verdict != model.VerdictSame || d.Label == "" {
			continue
		}
		ia, ok := idx[d.ClusterA]
		if !ok {
			continue
		}
		if d.ClusterB == "" {
			root := uf.Find(ia)
			labels[root] = append(labels[root], labelCandidate{conf: d.Confidence, label: d.Label})
			continue
		}
		ib, ok := idx[d.ClusterB]
		if !ok || d.Confidence < threshold {
			continue
		}
		root := uf.Find(ia)
		if root != uf.Find(ib) {
			continue
		}
		labels[root] = append(labels[root], labelCandidate{conf: d.Confidence, label: d.Label})
	}
	return labels
}

// bestLabel picks the highest-confidence label, preferring the longest and
// then the lexicographically smallest on ties.
func bestLabel(cands []labelCandidate) string {
	if len(cands) == 0 {
		return ""
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].conf != cands[j].conf {
			return cands[i].conf > cands[j].conf
		}
		if len(cands[i].label) != len(cands[j].label) {
			return len(cands[i].label) > len(cands[j].label)
		}
		return cands[i].label < cands[j].label
	})
	return cands[0].label
}
