package dispatch

import (
	"time"

	"github.com/nerrad567/nebula-core/internal/robot"
)

// TargetResult is the outcome of one delivery attempt.
type TargetResult struct {
	RobotID  string         `json:"robot_id"`
	Name     string         `json:"name"`
	Protocol robot.Protocol `json:"protocol"`
	Success  bool           `json:"success"`
	TimedOut bool           `json:"timed_out,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Report summarises a fan-out. A report with failures is still a completed
// dispatch; it is observational only.
type Report struct {
	SignalType string         `json:"signal_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Results    []TargetResult `json:"results"`
}

// Failed returns the number of targets that did not accept the signal.
func (r *Report) Failed() int {
	return r.Total - r.Succeeded
}

// Result returns the outcome for one robot.
func (r *Report) Result(robotID string) (TargetResult, bool) {
	for _, res := range r.Results {
		if res.RobotID == robotID {
			return res, true
		}
	}
	return TargetResult{}, false
}
