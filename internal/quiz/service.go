package quiz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/shakai-quiz/internal/export"
	"github.com/gokatarajesh/shakai-quiz/internal/question"
)

const uploadLabel = "upload"

// PoolSource lists and loads the bundled datasets.
type PoolSource interface {
	Datasets() []question.Dataset
	Pool(name string) (question.Pool, error)
}

// ServiceOptions configures the quiz service.
type ServiceOptions struct {
	Policy       RetryPolicy
	PresetCounts []int
	RequireField bool
	AutoAdvance  time.Duration
	LockWait     time.Duration
	// Seed fixes the random source for reproducible runs; zero picks one.
	Seed     uint64
	Location *time.Location
}

// StartRequest picks the round size either directly or by preset.
type StartRequest struct {
	Count  int `json:"count"`
	Preset int `json:"preset"`
}

// Service runs session actions: load state, apply one transition, save.
type Service struct {
	store   Store
	pools   PoolSource
	opts    ServiceOptions
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService creates a quiz service with all dependencies.
func NewService(store Store, pools PoolSource, metrics *Metrics, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Policy == "" {
		opts.Policy = PolicyRetry
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Service{
		store:   store,
		pools:   pools,
		opts:    opts,
		metrics: metrics,
		logger:  logger.With().Str("component", "quiz_service").Logger(),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// NewSessionID returns a fresh session identifier.
func (s *Service) NewSessionID() string {
	return uuid.NewString()
}

// Datasets lists the bundled datasets.
func (s *Service) Datasets() []question.Dataset {
	return s.pools.Datasets()
}

// PresetCounts are the offered round sizes.
func (s *Service) PresetCounts() []int {
	return slices.Clone(s.opts.PresetCounts)
}

// SelectDataset loads a bundled dataset and returns the session to the menu.
func (s *Service) SelectDataset(ctx context.Context, sessionID, name string) (View, error) {
	return s.apply(ctx, sessionID, "select_dataset", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		pool, err := s.pools.Pool(name)
		if err != nil {
			return st, err
		}
		return LoadPool(st, name, pool)
	})
}

// Upload parses a user supplied CSV and installs it as the session pool.
// field is the default 分野 for rows without one.
func (s *Service) Upload(ctx context.Context, sessionID string, file io.Reader, fileName, field string) (View, error) {
	if field == "" {
		field = fileName
	}
	pool, err := question.Load(file, question.LoadOptions{
		RequireField: s.opts.RequireField,
		DefaultField: field,
	})
	if err != nil {
		s.logger.Info().Err(err).Str("session_id", sessionID).Str("file", fileName).Msg("upload rejected")
		return View{}, err
	}
	return s.apply(ctx, sessionID, "upload", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		return LoadPool(st, fileName, pool)
	})
}

// SetName records the student name.
func (s *Service) SetName(ctx context.Context, sessionID, name string) (View, error) {
	return s.apply(ctx, sessionID, "set_name", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		return SetUserName(st, name), nil
	})
}

// Start begins a round. A non-zero Preset must be one of the offered counts.
func (s *Service) Start(ctx context.Context, sessionID string, req StartRequest) (View, error) {
	count := req.Count
	if req.Preset != 0 {
		if !slices.Contains(s.opts.PresetCounts, req.Preset) {
			return View{}, fmt.Errorf("%w: preset %d not offered", ErrInvalidCount, req.Preset)
		}
		count = req.Preset
	}
	return s.apply(ctx, sessionID, "start", func(st State, r *rand.Rand, now time.Time) (State, error) {
		return Start(st, count, r, now)
	})
}

// Render returns the current view, drawing a question if one is due.
func (s *Service) Render(ctx context.Context, sessionID string) (View, error) {
	return s.apply(ctx, sessionID, "render", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		return st, nil
	})
}

// Answer submits a choice label or choice text.
func (s *Service) Answer(ctx context.Context, sessionID, choice string) (View, error) {
	return s.apply(ctx, sessionID, "answer", func(st State, _ *rand.Rand, now time.Time) (State, error) {
		return Submit(st, choice, now)
	})
}

// Next leaves feedback.
func (s *Service) Next(ctx context.Context, sessionID string) (View, error) {
	return s.apply(ctx, sessionID, "next", func(st State, r *rand.Rand, now time.Time) (State, error) {
		return Next(st, r, now)
	})
}

// PlayAgain returns a completed round to the menu.
func (s *Service) PlayAgain(ctx context.Context, sessionID string) (View, error) {
	return s.apply(ctx, sessionID, "play_again", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		return PlayAgain(st)
	})
}

// Finish enables export.
func (s *Service) Finish(ctx context.Context, sessionID, name string) (View, error) {
	return s.apply(ctx, sessionID, "finish", func(st State, _ *rand.Rand, _ time.Time) (State, error) {
		return Finish(st, name)
	})
}

// Export renders the results file of a finished session.
func (s *Service) Export(ctx context.Context, sessionID string) (string, []byte, error) {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	if st.Phase != PhaseFinished {
		return "", nil, ErrNotFinished
	}

	at := s.now().In(s.opts.Location)
	var buf bytes.Buffer
	if err := export.Write(&buf, reportOf(st, at)); err != nil {
		return "", nil, fmt.Errorf("export session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Exports.Inc()
	}
	s.logger.Info().Str("session_id", sessionID).Int("records", len(st.History)).Msg("results exported")
	return export.FileName(st.UserName, at), buf.Bytes(), nil
}

type transition func(st State, r *rand.Rand, now time.Time) (State, error)

// apply runs one action under the session lock. The new state is presented,
// validated and saved only if the transition succeeds; otherwise the view of
// the unchanged state is returned with the error.
func (s *Service) apply(ctx context.Context, sessionID, action string, fn transition) (View, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()

	unlock, err := s.store.Lock(lockCtx, sessionID)
	if err != nil {
		return View{}, fmt.Errorf("lock session: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("release session lock")
		}
	}()

	st, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}

	now := s.now()
	r := s.nextRand()
	log := s.logger.With().Str("session_id", sessionID).Str("action", action).Logger()

	next, err := fn(st, r, now)
	if err != nil {
		log.Debug().Err(err).Str("phase", string(st.Phase)).Msg("action rejected")
		return s.view(st, now), err
	}
	next = Present(next, r, now)
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("session invariant broken")
		return s.view(st, now), fmt.Errorf("%s: %w", action, err)
	}
	if err := s.store.Save(ctx, next); err != nil {
		return s.view(st, now), fmt.Errorf("save session: %w", err)
	}

	s.observe(log, st, next)
	log.Debug().Str("from", string(st.Phase)).Str("to", string(next.Phase)).Msg("session updated")
	return s.view(next, now), nil
}

func (s *Service) load(ctx context.Context, sessionID string) (State, error) {
	st, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return NewState(sessionID, s.opts.Policy), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load session: %w", err)
	}
	return st, nil
}

// nextRand derives an independent source for one action.
func (s *Service) nextRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

func (s *Service) view(st State, now time.Time) View {
	return buildView(st, now, viewOptions{
		presets:     s.opts.PresetCounts,
		autoAdvance: s.opts.AutoAdvance,
	})
}

func (s *Service) observe(log zerolog.Logger, prev, next State) {
	if prev.Choices == nil && next.Choices != nil && next.Pool.DistinctAnswers() <= question.DistractorCount {
		log.Debug().Int("distinct_answers", next.Pool.DistinctAnswers()).Msg("choices padded from a small pool")
		if s.metrics != nil {
			s.metrics.DistractorShortage.Inc()
		}
	}
	if s.metrics == nil {
		return
	}
	if prev.Phase == PhaseMenu && next.Phase != PhaseMenu {
		s.metrics.SessionsStarted.WithLabelValues(s.datasetLabel(next.Dataset)).Inc()
	}
	if next.Answered == prev.Answered+1 && len(next.History) > 0 {
		rec := next.History[len(next.History)-1]
		result := "wrong"
		if rec.Correct {
			result = "correct"
		}
		s.metrics.Answers.WithLabelValues(result).Inc()
		if rec.ElapsedSeconds != nil {
			s.metrics.AnswerSeconds.Observe(float64(*rec.ElapsedSeconds))
		}
	}
	if prev.Phase != PhaseDone && next.Phase == PhaseDone {
		s.metrics.SessionsCompleted.Inc()
	}
}

// datasetLabel bounds metric cardinality: uploaded pools are named after
// user supplied files and share one label.
func (s *Service) datasetLabel(name string) string {
	for _, ds := range s.pools.Datasets() {
		if ds.Name == name {
			return name
		}
	}
	return uploadLabel
}

func reportOf(st State, at time.Time) export.Report {
	rep := export.Report{
		UserName:    st.UserName,
		Dataset:     st.Dataset,
		TargetCount: st.TargetCount,
		Elapsed:     st.Elapsed(at),
		At:          at,
		Records:     make([]export.Record, len(st.History)),
	}
	for i, h := range st.History {
		rep.Records[i] = export.Record{
			Prompt:         h.Prompt,
			Answer:         h.Answer,
			Choices:        h.Choices,
			Chosen:         h.Chosen,
			Correct:        h.Correct,
			ElapsedSeconds: h.ElapsedSeconds,
			Field:          h.Field,
		}
	}
	return rep
}
