package quiz

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gokatarajesh/shakai-quiz/internal/question"
)

// Phase is the current step of the session state machine.
type Phase string

const (
	PhaseMenu     Phase = "menu"     // choosing dataset and question count
	PhaseQuiz     Phase = "quiz"     // question displayed, awaiting answer
	PhaseFeedback Phase = "feedback" // showing result of last answer
	PhaseDone     Phase = "done"     // all target questions answered
	PhaseFinished Phase = "finished" // export enabled, terminal
)

// RetryPolicy decides what happens to a question after a wrong answer.
type RetryPolicy string

const (
	// PolicyRetry keeps wrongly answered questions in rotation until mastered.
	PolicyRetry RetryPolicy = "retry"
	// PolicyOnce removes every answered question regardless of correctness.
	PolicyOnce RetryPolicy = "once"
)

// ParseRetryPolicy validates a configured policy name.
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	switch p := RetryPolicy(s); p {
	case PolicyRetry, PolicyOnce:
		return p, nil
	}
	return "", fmt.Errorf("unknown retry policy %q", s)
}

var (
	ErrInvalidCount      = errors.New("question count must be at least 1")
	ErrInvalidSubmission = errors.New("choice does not match any offered option")
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	ErrNoPool            = errors.New("no question pool loaded")
	ErrNotFinished       = errors.New("session is not finished")
	ErrSessionBusy       = errors.New("session is busy")
	ErrSessionNotFound   = errors.New("session not found")
)

// HistoryRecord is one answered question.
type HistoryRecord struct {
	Prompt         string   `json:"prompt"`
	Answer         string   `json:"answer"`
	Chosen         string   `json:"chosen"`
	Correct        bool     `json:"correct"`
	ElapsedSeconds *int     `json:"elapsed_seconds,omitempty"`
	Field          string   `json:"field,omitempty"`
	Choices        []string `json:"choices"`
}

// Outcome is the result of the most recent answer, shown in feedback.
type Outcome struct {
	Correct bool   `json:"correct"`
	Answer  string `json:"answer"`
	Chosen  string `json:"chosen"`
}

// State is the complete session. Transitions take a State and return a new
// one; the input is never modified, so a failed transition leaves nothing
// half-written.
type State struct {
	SessionID string        `json:"session_id"`
	Phase     Phase         `json:"phase"`
	Policy    RetryPolicy   `json:"policy"`
	Dataset   string        `json:"dataset"`
	UserName  string        `json:"user_name"`
	Pool      question.Pool `json:"pool"`

	Remaining   []int    `json:"remaining"`
	Current     *int     `json:"current,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Score       int      `json:"score"`
	Answered    int      `json:"answered"`
	TargetCount int      `json:"target_count"`

	History     []HistoryRecord `json:"history"`
	LastOutcome *Outcome        `json:"last_outcome,omitempty"`

	StartedAt         time.Time `json:"started_at"`
	QuestionStartedAt time.Time `json:"question_started_at"`
	CompletedAt       time.Time `json:"completed_at"`
}

// NewState returns an empty session sitting in the menu.
func NewState(sessionID string, policy RetryPolicy) State {
	if policy == "" {
		policy = PolicyRetry
	}
	return State{
		SessionID: sessionID,
		Phase:     PhaseMenu,
		Policy:    policy,
	}
}

// CurrentQuestion resolves Current against the pool.
func (s State) CurrentQuestion() (question.Question, bool) {
	if s.Current == nil {
		return question.Question{}, false
	}
	return s.Pool.ByID(*s.Current)
}

// Elapsed is the session time so far, frozen once the session is done.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !s.CompletedAt.IsZero() {
		end = s.CompletedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// CorrectRate is the percentage of correct answers rounded to one decimal.
func (s State) CorrectRate() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(int(float64(s.Score)/float64(s.Answered)*1000+0.5)) / 10
}

// Validate reports the first broken bookkeeping invariant, if any.
func (s State) Validate() error {
	if s.Score > s.Answered || s.Answered > s.TargetCount {
		return fmt.Errorf("score %d, answered %d, target %d out of order", s.Score, s.Answered, s.TargetCount)
	}
	if len(s.History) != s.Answered {
		return fmt.Errorf("history has %d records, answered %d", len(s.History), s.Answered)
	}
	switch s.Phase {
	case PhaseMenu, PhaseDone, PhaseFinished:
		if s.Current != nil {
			return fmt.Errorf("current question set in phase %s", s.Phase)
		}
	case PhaseFeedback:
		if s.Current == nil {
			return fmt.Errorf("no current question in phase %s", s.Phase)
		}
	}
	if s.Phase == PhaseDone && len(s.Remaining) > 0 && s.Answered != s.TargetCount {
		return fmt.Errorf("done with %d remaining and %d of %d answered", len(s.Remaining), s.Answered, s.TargetCount)
	}
	if s.Choices != nil {
		q, ok := s.CurrentQuestion()
		if !ok {
			return errors.New("choices cached without a current question")
		}
		n := 0
		for _, c := range s.Choices {
			if c == q.Answer {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("correct answer appears %d times in choices", n)
		}
		if s.Pool.DistinctAnswers() >= question.DistractorCount+1 && len(dedupe(s.Choices)) != len(s.Choices) {
			return errors.New("duplicate choices")
		}
	}
	return nil
}

func (s State) clone() State {
	out := s
	out.Remaining = slices.Clone(s.Remaining)
	out.Choices = slices.Clone(s.Choices)
	out.History = slices.Clone(s.History)
	if s.Current != nil {
		id := *s.Current
		out.Current = &id
	}
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		out.LastOutcome = &o
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
