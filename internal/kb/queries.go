package kb

const (
	searchEntitiesQuery = `
		MATCH (e:KBEntity)
		WHERE toLower(e.label) CONTAINS toLower($label)
		   OR any(alias IN coalesce(e.aliases, []) WHERE toLower(alias) = toLower($label))
		OPTIONAL MATCH (e)-[:INSTANCE_OF]->(t:KBType)
		RETURN e.id AS id, e.label AS label, e.description AS description,
		       collect(DISTINCT {id: t.id, label: t.label}) AS types
		ORDER BY size(e.label) ASC, e.id ASC
		LIMIT $limit
	`

	typeParentsQuery = `
		MATCH (:KBType {id: $id})-[:SUBCLASS_OF]->(p:KBType)
		RETURN p.id AS id, p.label AS label
		ORDER BY p.id ASC
	`
)
