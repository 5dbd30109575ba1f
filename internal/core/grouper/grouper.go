// Package grouper partitions a document's mentions into candidate clusters
// and closes the clusters over string heuristics into candidate groups. The
// heuristics over-group on purpose, since the oracle corrects false merges
// later, but identical normalized surfaces are never split apart.
package grouper

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/agenthands/cobalt/internal/core/common"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/core/normalize"
)

// Group builds the coarse partition for one document. Mentions join the same
// candidate cluster iff their entity type and normalized surface match
// exactly; clusters of one type are then linked into groups when one name is
// a token subsequence or the exact acronym of the other. Empty input yields
// empty output. The result is deterministic and independent of pair scan
// order (union-find closure).
func Group(mentions []model.Mention) []model.CandidateGroup {
	if len(mentions) == 0 {
		return nil
	}

	type seed struct {
		cluster  model.CandidateCluster
		tokens   []string
		firstIdx int
	}

	var seeds []*seed
	index := make(map[string]*seed) // type|normalized → seed

	for i, m := range mentions {
		folded := m.Normalized
		if folded == "" {
			folded = normalize.Fold(m.Surface)
		}
		key := string(m.Type) + "|" + folded
		s, ok := index[key]
		if !ok {
			s = &seed{
				cluster: model.CandidateCluster{
					ID:   clusterID(m.Type, folded),
					Type: m.Type,
				},
				tokens:   strings.Fields(folded),
				firstIdx: i,
			}
			index[key] = s
			seeds = append(seeds, s)
		}
		s.cluster.MentionIDs = append(s.cluster.MentionIDs, m.ID)
	}

	uf := common.NewDisjointSet(len(seeds))
	for i := 0; i < len(seeds); i++ {
		for j := i + 1; j < len(seeds); j++ {
			if seeds[i].cluster.Type != seeds[j].cluster.Type {
				continue
			}
			if nameMatch(seeds[i].tokens, seeds[j].tokens) {
				uf.Union(i, j)
			}
		}
	}

	byRoot := make(map[int][]*seed)
	for i, s := range seeds {
		root := uf.Find(i)
		byRoot[root] = append(byRoot[root], s)
	}

	type grouped struct {
		group    model.CandidateGroup
		firstIdx int
	}
	out := make([]grouped, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Slice(members, func(a, b int) bool { return members[a].firstIdx < members[b].firstIdx })
		g := model.CandidateGroup{Type: members[0].cluster.Type}
		for _, s := range members {
			g.Clusters = append(g.Clusters, s.cluster)
		}
		out = append(out, grouped{group: g, firstIdx: members[0].firstIdx})
	}
	// Feed order keeps output stable across runs regardless of map iteration.
	sort.Slice(out, func(a, b int) bool { return out[a].firstIdx < out[b].firstIdx })

	groups := make([]model.CandidateGroup, len(out))
	for i, g := range out {
		groups[i] = g.group
	}
	return groups
}

// clusterID derives a stable identifier from the cluster's content so that
// downstream confidence tie-breaks are reproducible across runs.
func clusterID(t model.EntityType, normalized string) string {
	sum := sha1.Sum([]byte(string(t) + "\x00" + normalized))
	return "c" + hex.EncodeToString(sum[:6])
}

// nameMatch reports whether two normalized token sequences plausibly name the
// same entity: one is a token subsequence of the other ("j smith" within
// "john smith", "obama" within "barack obama") or the exact acronym of the
// other's initials ("who" for "world health organization").
func nameMatch(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if tokenSubsequence(short, long) {
		return true
	}
	return acronymMatch(short, long)
}

// tokenSubsequence reports whether every token of short appears in long in
// order. A single-letter token (a folded initial such as "j" from "J.")
// matches any token sharing its first letter.
func tokenSubsequence(short, long []string) bool {
	li := 0
	for _, tok := range short {
		matched := false
		for li < len(long) {
			if tokenEqual(tok, long[li]) {
				matched = true
				li++
				break
			}
			li++
		}
		if !matched {
			return false
		}
	}
	return true
}

func tokenEqual(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 1 {
		return b != "" && b[0] == a[0]
	}
	if len(b) == 1 {
		return a != "" && a[0] == b[0]
	}
	return false
}

// acronymMatch reports whether short is a single token of at least two
// letters equal to the in-order initials of long's tokens. Partial initial
// matches are rejected; "WHO" matches "World Health Organization" but not
// "World Health Assembly".
func acronymMatch(short, long []string) bool {
	if len(short) != 1 || len(long) < 2 {
		return false
	}
	acronym := short[0]
	if len(acronym) < 2 || len(acronym) != len(long) {
		return false
	}
	for i, tok := range long {
		if tok == "" || acronym[i] != tok[0] {
			return false
		}
	}
	return true
}
