package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	choicesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_choices_total",
		Help: "Choices requested by players, by outcome.",
	}, []string{"outcome"}) // made, unavailable, not_found, completed_session

	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_engine_sessions_started_total",
		Help: "Play sessions started.",
	})

	sessionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_sessions_completed_total",
		Help: "Play sessions that reached completion, by trigger.",
	}, []string{"trigger"}) // ending, explicit, load

	skippedEffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_skipped_effects_total",
		Help: "Effects that left the state unchanged, by effect type.",
	}, []string{"type"})

	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_saves_total",
		Help: "Saved-game operations, by operation.",
	}, []string{"operation"}) // save, load, delete

	choiceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "story_engine_choice_duration_seconds",
		Help:    "Time spent handling MakeChoice, including persistence.",
		Buckets: prometheus.DefBuckets,
	})
)
