package quiz

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gokatarajesh/shakai-quiz/internal/question"
)

// LoadPool installs a freshly loaded pool and returns the session to the
// menu. Everything except the session id, policy and user name is reset.
func LoadPool(st State, dataset string, pool question.Pool) (State, error) {
	if len(pool) == 0 {
		return st, ErrNoPool
	}
	next := NewState(st.SessionID, st.Policy)
	next.UserName = st.UserName
	next.Dataset = dataset
	next.Pool = pool
	return next, nil
}

// SetUserName records the student name used in the export.
func SetUserName(st State, name string) State {
	next := st.clone()
	next.UserName = strings.TrimSpace(name)
	return next
}

// ClampCount bounds a requested question count to the pool size.
// Counts below one are rejected.
func ClampCount(count, poolSize int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if count > poolSize {
		return poolSize, nil
	}
	return count, nil
}

// Start draws count questions from the pool and enters the quiz phase.
func Start(st State, count int, r *rand.Rand, now time.Time) (State, error) {
	if st.Phase != PhaseMenu {
		return st, fmt.Errorf("start from %s: %w", st.Phase, ErrInvalidTransition)
	}
	if len(st.Pool) == 0 {
		return st, ErrNoPool
	}
	n, err := ClampCount(count, len(st.Pool))
	if err != nil {
		return st, err
	}

	ids := make([]int, 0, n)
	if n < len(st.Pool) {
		for _, i := range r.Perm(len(st.Pool))[:n] {
			ids = append(ids, st.Pool[i].ID)
		}
	} else {
		for _, q := range st.Pool {
			ids = append(ids, q.ID)
		}
	}

	next := st.clone()
	next.Phase = PhaseQuiz
	next.Remaining = ids
	next.Current = nil
	next.Choices = nil
	next.Score = 0
	next.Answered = 0
	next.TargetCount = n
	next.History = []HistoryRecord{}
	next.LastOutcome = nil
	next.StartedAt = now
	next.QuestionStartedAt = time.Time{}
	next.CompletedAt = time.Time{}
	return next, nil
}

// Present prepares the quiz phase for display: it draws a question if none
// is current and builds the choice set once per question. Calling it again
// without an intervening action returns an identical state. Outside the quiz
// phase it is a no-op.
func Present(st State, r *rand.Rand, now time.Time) State {
	if st.Phase != PhaseQuiz {
		return st
	}
	if st.Current != nil && st.Choices != nil {
		return st
	}

	next := st.clone()
	if next.Current == nil {
		advance(&next, r, now)
		if next.Phase != PhaseQuiz {
			return next
		}
	}
	q, ok := next.CurrentQuestion()
	if !ok {
		// Current points outside the pool; drop it and draw again.
		next.Remaining = slices.DeleteFunc(next.Remaining, func(id int) bool { return id == *next.Current })
		next.Current = nil
		return Present(next, r, now)
	}
	next.Choices = question.BuildChoices(q, next.Pool, r)
	return next
}

// Submit scores the chosen option. choice is either a 1-based label or the
// exact text of an offered choice; anything else is ErrInvalidSubmission and
// the state is returned unchanged.
func Submit(st State, choice string, now time.Time) (State, error) {
	if st.Phase != PhaseQuiz {
		return st, fmt.Errorf("answer in %s: %w", st.Phase, ErrInvalidTransition)
	}
	q, ok := st.CurrentQuestion()
	if !ok || st.Choices == nil {
		return st, ErrInvalidSubmission
	}
	chosen, ok := resolveChoice(st.Choices, choice)
	if !ok {
		return st, fmt.Errorf("%w: %q", ErrInvalidSubmission, choice)
	}

	next := st.clone()
	correct := chosen == q.Answer

	rec := HistoryRecord{
		Prompt:  q.Prompt,
		Answer:  q.Answer,
		Chosen:  chosen,
		Correct: correct,
		Field:   q.Field,
		Choices: slices.Clone(next.Choices),
	}
	if !next.QuestionStartedAt.IsZero() && !now.Before(next.QuestionStartedAt) {
		secs := int(now.Sub(next.QuestionStartedAt).Seconds())
		rec.ElapsedSeconds = &secs
	}
	next.Answered++
	next.History = append(next.History, rec)

	if correct {
		next.Score++
	}
	if correct || next.Policy == PolicyOnce {
		next.Remaining = slices.DeleteFunc(next.Remaining, func(id int) bool { return id == q.ID })
	}

	next.LastOutcome = &Outcome{Correct: correct, Answer: q.Answer, Chosen: chosen}
	next.Phase = PhaseFeedback
	return next, nil
}

// Next leaves feedback: it draws the next question, or moves to done when
// nothing remains or the target count is reached.
func Next(st State, r *rand.Rand, now time.Time) (State, error) {
	if st.Phase != PhaseFeedback {
		return st, fmt.Errorf("next from %s: %w", st.Phase, ErrInvalidTransition)
	}
	next := st.clone()
	next.Current = nil
	next.LastOutcome = nil
	advance(&next, r, now)
	return next, nil
}

// PlayAgain returns a finished round to the menu, keeping the pool.
func PlayAgain(st State) (State, error) {
	if st.Phase != PhaseDone && st.Phase != PhaseFinished {
		return st, fmt.Errorf("play again from %s: %w", st.Phase, ErrInvalidTransition)
	}
	next := NewState(st.SessionID, st.Policy)
	next.UserName = st.UserName
	next.Dataset = st.Dataset
	next.Pool = st.Pool
	return next, nil
}

// Finish enables export. A non-empty name replaces the stored user name.
func Finish(st State, userName string) (State, error) {
	if st.Phase != PhaseDone {
		return st, fmt.Errorf("finish from %s: %w", st.Phase, ErrInvalidTransition)
	}
	next := st.clone()
	if name := strings.TrimSpace(userName); name != "" {
		next.UserName = name
	}
	next.Phase = PhaseFinished
	return next, nil
}

// Done reports whether no further question may be drawn.
func Done(st State) bool {
	return len(st.Remaining) == 0 || st.Answered >= st.TargetCount
}

// advance draws a new current question or moves the session to done.
func advance(st *State, r *rand.Rand, now time.Time) {
	st.Choices = nil
	if Done(*st) {
		st.Current = nil
		st.Phase = PhaseDone
		st.CompletedAt = now
		return
	}
	id := st.Remaining[r.IntN(len(st.Remaining))]
	st.Current = &id
	st.Phase = PhaseQuiz
	st.QuestionStartedAt = now
}

func resolveChoice(choices []string, choice string) (string, bool) {
	choice = strings.TrimSpace(choice)
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(choices) && strconv.Itoa(n) == choice {
		return choices[n-1], true
	}
	for _, c := range choices {
		if c == choice {
			return c, true
		}
	}
	return "", false
}
