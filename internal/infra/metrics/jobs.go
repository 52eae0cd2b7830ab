package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(organizeRunsTotal, organizeStepsTotal, extractionJobsTotal, chatTurnsTotal)
}

var (
	organizeRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organize_runs_total",
			Help: "Total number of organize job runs, labeled by outcome.",
		},
		[]string{"status"}, // 'completed', 'failed', 'rejected'
	)

	organizeStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organize_steps_total",
			Help: "Organize step completions per step and outcome.",
		},
		[]string{"step", "status"},
	)

	extractionJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_jobs_total",
			Help: "Post-chat memory extraction jobs, labeled by outcome.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns served, labeled by outcome.",
		},
		[]string{"status"},
	)
)

func IncOrganizeRun(status string) { organizeRunsTotal.WithLabelValues(norm(status)).Inc() }

func IncOrganizeStep(step, status string) {
	organizeStepsTotal.WithLabelValues(norm(step), norm(status)).Inc()
}

func IncExtractionJob(status string) { extractionJobsTotal.WithLabelValues(norm(status)).Inc() }

func IncChatTurn(status string) { chatTurnsTotal.WithLabelValues(norm(status)).Inc() }
