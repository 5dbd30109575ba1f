// Package assemble materializes canonical entities from the merged
// partition and guards the pipeline's core invariant: every input mention
// ends up in exactly one entity.
package assemble

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/cobalt/internal/core/merge"
	"github.com/agenthands/cobalt/internal/core/model"
)

// ErrPartitionViolation marks corrupted merge output. It signals a defect
// in resolution logic, never bad input.
var ErrPartitionViolation = errors.New("canonical entities do not partition the input mentions")

// Entities builds one canonical entity per merged cluster. When no oracle
// decision supplied a label, the longest member surface stands in.
func Entities(mentions []model.Mention, merged []merge.Merged) []model.CanonicalEntity {
	byID := make(map[string]model.Mention, len(mentions))
	for _, m := range mentions {
		byID[m.ID] = m
	}

	entities := make([]model.CanonicalEntity, 0, len(merged))
	for _, mc := range merged {
		e := model.CanonicalEntity{
			ID:    entityID(mc),
			Type:  mc.Type,
			Label: mc.Label,
		}
		for _, mid := range mc.MentionIDs {
			if m, ok := byID[mid]; ok {
				e.Members = append(e.Members, m)
			}
		}
		if e.Label == "" {
			e.Label = fallbackLabel(e.Members)
		}
		entities = append(entities, e)
	}
	return entities
}

// Finalize verifies the exhaustive-partition invariant and wraps the
// entities into a Result. A violation is surfaced loudly instead of being
// papered over.
func Finalize(mentions []model.Mention, entities []model.CanonicalEntity) (*model.Result, error) {
	counts := make(map[string]int)
	for _, e := range entities {
		for _, m := range e.Members {
			counts[m.ID]++
		}
	}

	var missing, duplicated []string
	for _, m := range mentions {
		switch counts[m.ID] {
		case 1:
		case 0:
			missing = append(missing, m.ID)
		default:
			duplicated = append(duplicated, m.ID)
		}
	}
	if len(missing) > 0 || len(duplicated) > 0 {
		sort.Strings(missing)
		sort.Strings(duplicated)
		return nil, fmt.Errorf("%w: missing=%v duplicated=%v", ErrPartitionViolation, missing, duplicated)
	}
	return model.NewResult(entities), nil
}

// entityID derives a stable identifier from the entity's content so that
// identical inputs and decisions reproduce identical results.
func entityID(mc merge.Merged) string {
	h := sha1.New()
	h.Write([]byte(mc.Type))
	for _, id := range mc.MentionIDs {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return "e" + hex.EncodeToString(h.Sum(nil))[:12]
}

// fallbackLabel picks the longest member surface, ties broken
// lexicographically.
func fallbackLabel(members []model.Mention) string {
	best := ""
	for _, m := range members {
		s := strings.TrimSpace(m.Surface)
		if len(s) > len(best) || (len(s) == len(best) && s != "" && s < best) {
			best = s
		}
	}
	return best
}
