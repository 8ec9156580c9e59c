package application

import "expvar"

// Counters published on /debug/vars.
var (
	submissionsTotal   = expvar.NewInt("registration_submissions_total")
	submissionFailures = expvar.NewInt("registration_submission_failures_total")
	draftWrites        = expvar.NewInt("registration_draft_writes_total")
	liveSignals        = expvar.NewInt("registration_live_signals_total")
)
