package model

// CandidateCluster groups mentions whose normalized surfaces are identical.
// Every mention belongs to exactly one candidate cluster during grouping; the
// oracle and merger operate on clusters, not raw mentions.
type CandidateCluster struct {
	ID         string     `json:"id"`
	Type       EntityType `json:"entity_type"`
	MentionIDs []string   `json:"mention_ids"` // insertion order, deterministic
}

// CandidateGroup is the union-find closure of candidate clusters over
// heuristic links (substring/abbreviation matches). Oracle pair resolution is
// confined to cluster pairs inside one group.
type CandidateGroup struct {
	Type     EntityType
	Clusters []CandidateCluster // ordered by first member's feed position
}
