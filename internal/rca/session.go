package rca

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// DefaultMaxDepth is the classic five whys.
const DefaultMaxDepth = 5

// Session drives one 5-Whys interrogation. Depth always equals len(steps); a
// concluded session accepts no further answers.
type Session struct {
	problem   string
	steps     []models.WhyStep
	maxDepth  int
	concluded bool
}

// New starts an interrogation of problem. A maxDepth of zero or less means
// DefaultMaxDepth.
func New(problem string, maxDepth int) (*Session, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return nil, utils.InvalidInput("rca.new", "problem statement cannot be empty")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Session{problem: problem, maxDepth: maxDepth}, nil
}

// Replay rebuilds a session from a transcript kept by the caller. Supplied
// question text is kept; blank questions are derived as in Advance.
func Replay(problem string, steps []models.WhyStep, maxDepth int) (*Session, error) {
	s, err := New(problem, maxDepth)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		if err := s.advance(step.Question, step.Answer); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Problem returns the problem statement.
func (s *Session) Problem() string { return s.problem }

// Depth returns the number of answered whys.
func (s *Session) Depth() int { return len(s.steps) }

// MaxDepth returns the depth at which the session concludes.
func (s *Session) MaxDepth() int { return s.maxDepth }

// Concluded reports whether the session is terminal.
func (s *Session) Concluded() bool { return s.concluded }

// Steps returns a copy of the answered whys.
func (s *Session) Steps() []models.WhyStep {
	return append([]models.WhyStep(nil), s.steps...)
}

// State returns the current phase.
func (s *Session) State() models.RCAState {
	switch {
	case s.concluded:
		return models.RCAConcluded
	case len(s.steps) == 0:
		return models.RCAAwaitingFirstWhy
	default:
		return models.RCAAwaitingWhy
	}
}

// Prompt returns the question awaiting an answer, or "" once concluded.
func (s *Session) Prompt() string {
	if s.concluded {
		return ""
	}
	if len(s.steps) == 0 {
		return fmt.Sprintf("Why did %q occur?", s.problem)
	}
	return fmt.Sprintf("Why is %q happening?", s.steps[len(s.steps)-1].Answer)
}

// Advance records answer against the current prompt. Reaching the maximum
// depth concludes the session.
func (s *Session) Advance(answer string) (models.RCAProgress, error) {
	if err := s.advance("", answer); err != nil {
		return models.RCAProgress{}, err
	}
	return s.Progress(), nil
}

func (s *Session) advance(question, answer string) error {
	const op = "rca.advance"
	if s.concluded {
		return utils.InvalidState(op, "root cause analysis for %q is concluded; start a new one", s.problem)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return utils.InvalidInput(op, "answer cannot be empty")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = s.Prompt()
	}

	s.steps = append(s.steps, models.WhyStep{Question: question, Answer: answer})
	if len(s.steps) >= s.maxDepth {
		s.concluded = true
	}
	return nil
}

// Conclude stops the interrogation early. Concluding twice is harmless.
func (s *Session) Conclude() models.RCAProgress {
	s.concluded = true
	return s.Progress()
}

// Progress reports the prompt or conclusion for the current state.
func (s *Session) Progress() models.RCAProgress {
	progress := models.RCAProgress{
		Depth:     len(s.steps),
		State:     s.State(),
		Concluded: s.concluded,
		Summary:   s.Summary(),
	}
	if s.concluded {
		progress.ConclusionPrompt = s.conclusionPrompt()
	} else {
		progress.NextPrompt = s.Prompt()
	}
	return progress
}

func (s *Session) conclusionPrompt() string {
	if len(s.steps) == 0 {
		return fmt.Sprintf("Root cause analysis for %q was stopped before any why was answered.", s.problem)
	}
	last := s.steps[len(s.steps)-1].Answer
	if len(s.steps) >= s.maxDepth {
		return fmt.Sprintf("Reached %d whys. Review the chain: is %q the root cause to act on? If so, record corrective actions; if not, start a new analysis from it.", len(s.steps), last)
	}
	return fmt.Sprintf("Analysis stopped after %d whys. Treat %q as the working root cause and record corrective actions.", len(s.steps), last)
}

// Summary renders the problem line then one numbered line per answered why.
func (s *Session) Summary() []string {
	lines := make([]string, 0, len(s.steps)+1)
	lines = append(lines, "Problem: "+s.problem)
	for i, step := range s.steps {
		lines = append(lines, fmt.Sprintf("%d. Q: %s A: %s", i+1, step.Question, step.Answer))
	}
	return lines
}

type snapshot struct {
	ProblemStatement string           `json:"problem_statement"`
	Steps            []models.WhyStep `json:"steps"`
	MaxDepth         int              `json:"max_depth"`
	Concluded        bool             `json:"concluded"`
}

// MarshalJSON encodes the session for a session store.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		ProblemStatement: s.problem,
		Steps:            s.steps,
		MaxDepth:         s.maxDepth,
		Concluded:        s.concluded,
	})
}

// UnmarshalJSON restores a session written by MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if strings.TrimSpace(snap.ProblemStatement) == "" {
		return fmt.Errorf("rca snapshot has no problem statement")
	}
	if snap.MaxDepth <= 0 {
		snap.MaxDepth = DefaultMaxDepth
	}
	if len(snap.Steps) > snap.MaxDepth {
		return fmt.Errorf("rca snapshot has %d steps, more than max depth %d", len(snap.Steps), snap.MaxDepth)
	}
	*s = Session{
		problem:   snap.ProblemStatement,
		steps:     snap.Steps,
		maxDepth:  snap.MaxDepth,
		concluded: snap.Concluded || len(snap.Steps) == snap.MaxDepth,
	}
	return nil
}
