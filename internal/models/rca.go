package models

// WhyStep is one question/answer pair of a 5-Whys interrogation.
type WhyStep struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RCAState is the phase of a root-cause dialogue.
type RCAState string

const (
	RCAAwaitingFirstWhy RCAState = "awaiting_first_why"
	RCAAwaitingWhy      RCAState = "awaiting_why"
	RCAConcluded        RCAState = "concluded"
)

// RCAProgress is what a caller sees after each RCA turn. Exactly one of
// NextPrompt and ConclusionPrompt is set.
type RCAProgress struct {
	NextPrompt       string   `json:"next_prompt_for_user,omitempty"`
	ConclusionPrompt string   `json:"conclusion_prompt,omitempty"`
	Depth            int      `json:"current_depth"`
	State            RCAState `json:"state"`
	Concluded        bool     `json:"concluded"`
	Summary          []string `json:"analysis_summary"`
}
