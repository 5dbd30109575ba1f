package model

import (
	"fmt"
	"sort"
	"strings"
)

// TypeRef identifies one type in the external knowledge base's hierarchy.
type TypeRef struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// CanonicalEntity is the deduplicated real-world entity a group of mentions
// refers to. Created once per final cluster; KBID and TypePath are set at
// most once by the linker and never revised.
type CanonicalEntity struct {
	ID      string     `json:"id"`
	Label   string     `json:"canonical_label"`
	Type    EntityType `json:"entity_type"`
	Members []Mention  `json:"members"`

	// KBID is the external knowledge-base identifier, empty when unlinked.
	KBID string `json:"kb_identifier,omitempty"`
	// TypePath orders ancestor types most-specific first, empty when unlinked.
	TypePath []TypeRef `json:"kb_type_path,omitempty"`
}

// Linked reports whether the entity carries a knowledge-base identifier.
func (e CanonicalEntity) Linked() bool {
	return e.KBID != ""
}

// HasType reports whether typeID occurs anywhere in the entity's type path.
func (e CanonicalEntity) HasType(typeID string) bool {
	for _, t := range e.TypePath {
		if t.ID == typeID {
			return true
		}
	}
	return false
}

// Result is the full resolution output for one document.
type Result struct {
	Entities []CanonicalEntity `json:"entities"`

	byType map[string][]int // kb type id → indices into Entities
}

// NewResult wraps the assembled entities and builds the roll-down index from
// their already-resolved type paths. No external queries are involved.
func NewResult(entities []CanonicalEntity) *Result {
	r := &Result{
		Entities: entities,
		byType:   make(map[string][]int),
	}
	for i, e := range entities {
		seen := make(map[string]bool, len(e.TypePath))
		for _, t := range e.TypePath {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			r.byType[t.ID] = append(r.byType[t.ID], i)
		}
	}
	return r
}

// RollUp returns the ordered ancestor-type path of the given entity, from
// most specific to most general. Nil when the entity is unknown or unlinked.
func (r *Result) RollUp(entityID string) []TypeRef {
	for _, e := range r.Entities {
		if e.ID == entityID {
			return e.TypePath
		}
	}
	return nil
}

// RollDown returns the linked entities whose type path contains typeID, in
// result order.
func (r *Result) RollDown(typeID string) []CanonicalEntity {
	indices, ok := r.byType[typeID]
	if !ok {
		return nil
	}
	out := make([]CanonicalEntity, 0, len(indices))
	for _, i := range indices {
		out = append(out, r.Entities[i])
	}
	return out
}

// displayTypeOrder fixes the section order for the known entity types; any
// other type sorts alphabetically after them.
var displayTypeOrder = []EntityType{TypePerson, TypeOrg, TypeGPE}

// Display renders the result for human consumption, grouped by entity type
// and sorted by canonical label within each group.
func (r *Result) Display() string {
	grouped := make(map[EntityType][]CanonicalEntity)
	for _, e := range r.Entities {
		grouped[e.Type] = append(grouped[e.Type], e)
	}

	order := make([]EntityType, 0, len(grouped))
	order = append(order, displayTypeOrder...)
	var extra []EntityType
	for t := range grouped {
		known := false
		for _, k := range displayTypeOrder {
			if t == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	var b strings.Builder
	for _, t := range order {
		entities := grouped[t]
		if len(entities) == 0 {
			continue
		}
		sort.Slice(entities, func(i, j int) bool { return entities[i].Label < entities[j].Label })

		fmt.Fprintf(&b, "\n%s\n%s\n", t, strings.Repeat("-", len(t)))
		for _, e := range entities {
			fmt.Fprintf(&b, "  %s: %s", e.Label, strings.Join(uniqueSurfaces(e.Members), ", "))
			if e.Linked() {
				fmt.Fprintf(&b, " [%s%s]", e.KBID, typePathSuffix(e.TypePath))
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func uniqueSurfaces(members []Mention) []string {
	seen := make(map[string]bool, len(members))
	var out []string
	for _, m := range members {
		if seen[m.Surface] {
			continue
		}
		seen[m.Surface] = true
		out = append(out, m.Surface)
	}
	return out
}

func typePathSuffix(path []TypeRef) string {
	if len(path) == 0 {
		return ""
	}
	names := make([]string, 0, len(path))
	for _, t := range path {
		if t.Label != "" {
			names = append(names, t.Label)
		} else {
			names = append(names, t.ID)
		}
	}
	return ": " + strings.Join(names, " > ")
}
