package quiz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors for quiz sessions.
type Metrics struct {
	SessionsStarted    *prometheus.CounterVec
	Answers            *prometheus.CounterVec
	SessionsCompleted  prometheus.Counter
	Exports            prometheus.Counter
	DistractorShortage prometheus.Counter
	AnswerSeconds      prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Quiz rounds started, by bundled dataset or \"upload\".",
		}, []string{"dataset"}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Submitted answers, by result.",
		}, []string{"result"}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_completed_total",
			Help: "Quiz rounds that reached the done phase.",
		}),
		Exports: f.NewCounter(prometheus.CounterOpts{
			Name: "quiz_exports_total",
			Help: "Result files downloaded.",
		}),
		DistractorShortage: f.NewCounter(prometheus.CounterOpts{
			Name: "quiz_distractor_shortfall_total",
			Help: "Choice sets padded because the pool had too few distinct answers.",
		}),
		AnswerSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_answer_seconds",
			Help:    "Time spent on a question before answering.",
			Buckets: []float64{2, 5, 10, 20, 30, 60, 120, 300},
		}),
	}
}
