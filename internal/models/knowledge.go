package models

// KBEntry is a read-only knowledge-base record.
type KBEntry struct {
	ID                 string   `json:"id" yaml:"id"`
	Keywords           []string `json:"keywords" yaml:"keywords"`
	ProblemSummary     string   `json:"problem_summary" yaml:"problem_summary"`
	PossibleCauses     []string `json:"possible_causes" yaml:"possible_causes"`
	SuggestedSolutions []string `json:"suggested_solutions" yaml:"suggested_solutions"`
}

// KBMatch is an entry returned from a query with its match strength.
type KBMatch struct {
	KBEntry
	MatchedKeywords []string `json:"matched_keywords"`
}
