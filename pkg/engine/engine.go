// Package engine implements the background job-execution core: the
// fixed-size worker pool pulling from the priority queue, the per-job
// row loop with progress checkpointing, pause/resume/cancel/retry
// control, and startup recovery of jobs orphaned by a crash.
package engine

import "time"

// RecoveryPolicy decides what happens to jobs found in the running state
// at startup with no live worker owning them.
type RecoveryPolicy string

const (
	// RecoveryResume re-enqueues orphaned jobs from their last
	// checkpoint.
	RecoveryResume RecoveryPolicy = "resume"
	// RecoveryFail marks orphaned jobs failed with a worker-died error.
	RecoveryFail RecoveryPolicy = "fail"
)

// Config tunes the engine. Zero values are replaced by defaults; see
// DefaultConfig.
type Config struct {
	// Concurrency is the worker pool size. Parallelism across jobs
	// comes from this, never from intra-job fan-out.
	Concurrency int

	// CheckpointRows persists progress every K processed rows.
	CheckpointRows int
	// CheckpointInterval persists progress after T elapsed, whichever
	// of K or T comes first.
	CheckpointInterval time.Duration

	// RowTimeout bounds a single external processing call. A stuck call
	// must not starve the worker; expiry is treated as a transient row
	// failure.
	RowTimeout time.Duration

	// RowRetryMax is the number of in-place attempts for a transient
	// row failure before it counts against the job's failure budget.
	RowRetryMax int
	// RowRetryBase is the first backoff delay; it doubles per attempt,
	// capped at 30s.
	RowRetryBase time.Duration

	// FailureBudget is the number of permanently failed rows tolerated
	// before the whole job fails. The budget bounds graceful
	// degradation: one bad row does not consume a job, a pathological
	// source does not run forever.
	FailureBudget int

	// Recovery selects the startup policy for orphaned running jobs.
	Recovery RecoveryPolicy
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        3,
		CheckpointRows:     25,
		CheckpointInterval: 10 * time.Second,
		RowTimeout:         30 * time.Second,
		RowRetryMax:        3,
		RowRetryBase:       500 * time.Millisecond,
		FailureBudget:      10,
		Recovery:           RecoveryResume,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.CheckpointRows <= 0 {
		c.CheckpointRows = def.CheckpointRows
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = def.CheckpointInterval
	}
	if c.RowTimeout <= 0 {
		c.RowTimeout = def.RowTimeout
	}
	// RowRetryMax and FailureBudget keep explicit zero values: zero
	// retries and a zero budget are both meaningful configurations.
	if c.RowRetryMax < 0 {
		c.RowRetryMax = 0
	}
	if c.FailureBudget < 0 {
		c.FailureBudget = 0
	}
	if c.RowRetryBase <= 0 {
		c.RowRetryBase = def.RowRetryBase
	}
	if c.Recovery != RecoveryResume && c.Recovery != RecoveryFail {
		c.Recovery = def.Recovery
	}
	return c
}
