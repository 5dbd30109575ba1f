package resolve

import (
	"fmt"
	"strings"
)

// maxEvidenceContexts bounds how many source excerpts accompany each
// mention group in a prompt.
const maxEvidenceContexts = 3

const defaultPairPrompt = `You are an entity resolution system.

<GROUP A>
%s</GROUP A>

<GROUP B>
%s</GROUP B>

Instructions:
Decide whether GROUP A and GROUP B refer to the same real-world entity.
Consider abbreviations, partial names, nicknames, titles and aliases.
Return a JSON object with these keys:
- "verdict": "SAME" if both groups name one real-world entity, "DIFFERENT" if they name distinct entities, "UNCERTAIN" if the evidence does not decide it.
- "canonical_label": the best full name for the entity when the verdict is "SAME", otherwise "".
- "confidence": a float between 0.0 and 1.0.

Example JSON:
{"verdict": "SAME", "canonical_label": "Barack Obama", "confidence": 0.92}
Do not output any other text.`

const defaultLabelPrompt = `You are an entity resolution system.

<MENTION GROUP>
%s</MENTION GROUP>

Instructions:
All mentions above refer to one real-world entity. Choose the best canonical
name for it: prefer the fullest proper name over abbreviations or partial forms.
Return a JSON object with these keys:
- "canonical_label": the chosen name.
- "confidence": a float between 0.0 and 1.0.

Example JSON:
{"canonical_label": "World Health Organization", "confidence": 0.85}
Do not output any other text.`

// renderEvidence formats one cluster's surfaces and source excerpts for a
// prompt.
func renderEvidence(e ClusterEvidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\n", e.Cluster.Type)
	fmt.Fprintf(&b, "Mentions: %s\n", strings.Join(e.Surfaces, "; "))
	contexts := e.Contexts
	if len(contexts) > maxEvidenceContexts {
		contexts = contexts[:maxEvidenceContexts]
	}
	for _, c := range contexts {
		fmt.Fprintf(&b, "Context: ...%s...\n", c)
	}
	return b.String()
}
