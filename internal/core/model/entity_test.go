package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkedEntity(id, label string, t EntityType, kbID string, path ...TypeRef) CanonicalEntity {
	return CanonicalEntity{
		ID:       id,
		Label:    label,
		Type:     t,
		Members:  []Mention{{ID: "m-" + id, Surface: label, Type: t}},
		KBID:     kbID,
		TypePath: path,
	}
}

func TestRollDownFindsEntitiesByAncestorType(t *testing.T) {
	human := TypeRef{ID: "Q5", Label: "human"}
	person := TypeRef{ID: "Q215627", Label: "person"}
	country := TypeRef{ID: "Q6256", Label: "country"}

	result := NewResult([]CanonicalEntity{
		linkedEntity("e1", "Barack Obama", TypePerson, "Q76", human, person),
		linkedEntity("e2", "Jane Goodall", TypePerson, "Q184499", human, person),
		linkedEntity("e3", "Georgia", TypeGPE, "Q230", country),
	})

	humans := result.RollDown("Q5")
	require.Len(t, humans, 2)
	assert.Equal(t, "e1", humans[0].ID)
	assert.Equal(t, "e2", humans[1].ID)

	assert.Len(t, result.RollDown("Q215627"), 2)
	assert.Len(t, result.RollDown("Q6256"), 1)
	assert.Nil(t, result.RollDown("Q999"))
}

func TestRollUpReturnsPathMostSpecificFirst(t *testing.T) {
	human := TypeRef{ID: "Q5", Label: "human"}
	person := TypeRef{ID: "Q215627", Label: "person"}

	result := NewResult([]CanonicalEntity{
		linkedEntity("e1", "Barack Obama", TypePerson, "Q76", human, person),
	})

	assert.Equal(t, []TypeRef{human, person}, result.RollUp("e1"))
	assert.Nil(t, result.RollUp("missing"))
}

func TestRollDownIgnoresRepeatedPathEntries(t *testing.T) {
	human := TypeRef{ID: "Q5", Label: "human"}

	result := NewResult([]CanonicalEntity{
		linkedEntity("e1", "X", TypePerson, "Q1", human, human),
	})

	assert.Len(t, result.RollDown("Q5"), 1)
}

func TestHasType(t *testing.T) {
	e := linkedEntity("e1", "X", TypePerson, "Q1", TypeRef{ID: "Q5"}, TypeRef{ID: "Q215627"})
	assert.True(t, e.HasType("Q5"))
	assert.True(t, e.HasType("Q215627"))
	assert.False(t, e.HasType("Q6256"))

	unlinked := CanonicalEntity{ID: "e2"}
	assert.False(t, unlinked.Linked())
	assert.False(t, unlinked.HasType("Q5"))
}

func TestDisplayGroupsByTypeAndFormatsLinks(t *testing.T) {
	result := NewResult([]CanonicalEntity{
		{
			ID: "e1", Label: "Georgia", Type: TypeGPE,
			Members: []Mention{{ID: "m1", Surface: "Georgia", Type: TypeGPE}},
			KBID:    "Q230",
			TypePath: []TypeRef{
				{ID: "Q6256", Label: "country"},
				{ID: "Q56061", Label: "administrative territorial entity"},
			},
		},
		{
			ID: "e2", Label: "Barack Obama", Type: TypePerson,
			Members: []Mention{
				{ID: "m2", Surface: "Barack Obama", Type: TypePerson},
				{ID: "m3", Surface: "Obama", Type: TypePerson},
				{ID: "m4", Surface: "Obama", Type: TypePerson},
			},
		},
	})

	out := result.Display()

	personIdx := strings.Index(out, "PERSON")
	gpeIdx := strings.Index(out, "GPE")
	require.NotEqual(t, -1, personIdx)
	require.NotEqual(t, -1, gpeIdx)
	assert.Less(t, personIdx, gpeIdx, "PERSON section precedes GPE")

	// Duplicate surfaces collapse in the member list.
	assert.Contains(t, out, "Barack Obama: Barack Obama, Obama")
	assert.Contains(t, out, "Georgia: Georgia [Q230: country > administrative territorial entity]")
}

func TestDisplayEmptyResult(t *testing.T) {
	assert.Empty(t, NewResult(nil).Display())
}
