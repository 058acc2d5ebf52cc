package quiz

import (
	"strconv"
	"time"

	"github.com/gokatarajesh/shakai-quiz/internal/export"
)

// View is what a client renders for the current phase. Only the section
// matching Phase is populated.
type View struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`
	Dataset   string `json:"dataset,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	PoolSize  int    `json:"pool_size"`

	Menu     *MenuView     `json:"menu,omitempty"`
	Question *QuestionView `json:"question,omitempty"`
	Progress *ProgressView `json:"progress,omitempty"`
	Outcome  *Outcome      `json:"outcome,omitempty"`
	Summary  *SummaryView  `json:"summary,omitempty"`

	CanExport     bool `json:"can_export"`
	AutoAdvanceMS int  `json:"auto_advance_ms,omitempty"`
}

type MenuView struct {
	PresetCounts []int `json:"preset_counts"`
	MaxCount     int   `json:"max_count"`
}

type ChoiceView struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type QuestionView struct {
	Prompt        string       `json:"prompt"`
	Category      string       `json:"category"`
	CategoryLabel string       `json:"category_label"`
	Field         string       `json:"field,omitempty"`
	Choices       []ChoiceView `json:"choices"`
}

type ProgressView struct {
	Answered  int `json:"answered"`
	Target    int `json:"target"`
	Remaining int `json:"remaining"`
	Score     int `json:"score"`
}

type SummaryView struct {
	Score          int             `json:"score"`
	Answered       int             `json:"answered"`
	Target         int             `json:"target"`
	CorrectRate    float64         `json:"correct_rate"`
	Elapsed        string          `json:"elapsed"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	History        []HistoryRecord `json:"history"`
}

// viewOptions carry service settings that affect rendering.
type viewOptions struct {
	presets     []int
	autoAdvance time.Duration
}

func buildView(st State, now time.Time, opts viewOptions) View {
	v := View{
		SessionID: st.SessionID,
		Phase:     st.Phase,
		Dataset:   st.Dataset,
		UserName:  st.UserName,
		PoolSize:  len(st.Pool),
	}

	switch st.Phase {
	case PhaseMenu:
		presets := make([]int, 0, len(opts.presets))
		for _, p := range opts.presets {
			if p <= len(st.Pool) {
				presets = append(presets, p)
			}
		}
		v.Menu = &MenuView{PresetCounts: presets, MaxCount: len(st.Pool)}

	case PhaseQuiz, PhaseFeedback:
		v.Progress = &ProgressView{
			Answered:  st.Answered,
			Target:    st.TargetCount,
			Remaining: len(st.Remaining),
			Score:     st.Score,
		}
		if q, ok := st.CurrentQuestion(); ok && st.Phase == PhaseQuiz {
			qv := &QuestionView{
				Prompt:        q.Prompt,
				Category:      string(q.Category),
				CategoryLabel: q.Category.Label(),
				Field:         q.Field,
				Choices:       make([]ChoiceView, len(st.Choices)),
			}
			for i, c := range st.Choices {
				qv.Choices[i] = ChoiceView{Label: strconv.Itoa(i + 1), Text: c}
			}
			v.Question = qv
		}
		if st.Phase == PhaseFeedback {
			if st.LastOutcome != nil {
				o := *st.LastOutcome
				v.Outcome = &o
			}
			if opts.autoAdvance > 0 {
				v.AutoAdvanceMS = int(opts.autoAdvance / time.Millisecond)
			}
		}

	case PhaseDone, PhaseFinished:
		elapsed := st.Elapsed(now)
		history := st.History
		if history == nil {
			history = []HistoryRecord{}
		}
		v.Summary = &SummaryView{
			Score:          st.Score,
			Answered:       st.Answered,
			Target:         st.TargetCount,
			CorrectRate:    st.CorrectRate(),
			Elapsed:        export.FormatElapsed(elapsed),
			ElapsedSeconds: int(elapsed / time.Second),
			History:        history,
		}
		v.CanExport = st.Phase == PhaseFinished
	}
	return v
}
