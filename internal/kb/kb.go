// Package kb links canonical entities to an external knowledge base and
// resolves their type hierarchies. The search and hierarchy capabilities
// are interfaces so the pipeline runs against Wikidata-compatible APIs, a
// local graph store, or fakes in tests.
package kb

import (
	"context"

	"github.com/agenthands/cobalt/internal/core/model"
)

// Candidate is one knowledge-base entry returned by a search, in the
// backend's relevance order.
type Candidate struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Types       []model.TypeRef `json:"types,omitempty"`
}

// Searcher finds identifier candidates for an entity label. The type hint
// may narrow results or may be ignored by backends that cannot use it.
type Searcher interface {
	Search(ctx context.Context, label string, hint model.EntityType, limit int) ([]Candidate, error)
}

// Hierarchy exposes the subclass relation of the knowledge base's type
// system, one level at a time.
type Hierarchy interface {
	Parents(ctx context.Context, typeID string) ([]model.TypeRef, error)
}
