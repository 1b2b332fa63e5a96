// Package crossref talks to the Crossref deposit and resolved references APIs.
package crossref

// MatchedReference is one citation Crossref matched to a DOI.
type MatchedReference struct {
	Key string `json:"key"` // Citation key sent with the deposit
	DOI string `json:"doi"`
}

// resolvedRefsResponse is the getResolvedRefs response body.
// A nil MatchedReferences means the key was missing or null.
type resolvedRefsResponse struct {
	MatchedReferences *[]MatchedReference `json:"matched-references"`
}
