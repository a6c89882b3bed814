package compute

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// ErrInvalidSnapshot is wrapped by every ValidationError so callers can test
// for any boundary failure with errors.Is.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// CPUStat is the processor section of a Snapshot.
type CPUStat struct {
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}

// UsageStat is the memory or disk section of a Snapshot.
// Used and Total are byte counts; Used must not exceed Total.
type UsageStat struct {
	Percent float64 `json:"percent"`
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
}

// EndpointStat holds aggregated performance counters for one API endpoint.
type EndpointStat struct {
	// Count is the number of requests observed.
	Count int `json:"count"`

	// AvgTime is the mean request duration in seconds.
	AvgTime float64 `json:"avg_time"`

	// ErrorRate is the percentage of failed requests (0–100).
	ErrorRate float64 `json:"error_rate"`
}

// Snapshot is an immutable, point-in-time bundle of resource and endpoint
// metrics. Callers must not modify a Snapshot after handing it to Analyze.
type Snapshot struct {
	CPU           CPUStat                 `json:"cpu"`
	Memory        UsageStat               `json:"memory"`
	Disk          UsageStat               `json:"disk"`
	EndpointStats map[string]EndpointStat `json:"endpoint_stats"`
}

// Input is the four-signal vector consumed by Compute and Evaluate.
// All fields are percentages in the range 0–100.
type Input struct {
	CPU          float64
	Memory       float64
	Disk         float64
	APIErrorRate float64
}

// Input returns the signal vector for s using the supplied average API error
// rate (normally OverallErrorRate(s.EndpointStats)).
func (s Snapshot) Input(apiErrorRate float64) Input {
	return Input{
		CPU:          s.CPU.Percent,
		Memory:       s.Memory.Percent,
		Disk:         s.Disk.Percent,
		APIErrorRate: apiErrorRate,
	}
}

// ValidationError describes one field of a Snapshot that is outside its
// documented range.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// Unwrap lets errors.Is(err, ErrInvalidSnapshot) match.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSnapshot
}

// Validate checks every field of s and returns all violations combined.
// A nil or empty EndpointStats map is valid.
//
// Use multierr.Errors(err) to list the individual *ValidationError values.
func (s Snapshot) Validate() error {
	var err error
	err = multierr.Append(err, checkPercent("cpu.percent", s.CPU.Percent))
	if s.CPU.Count < 0 {
		err = multierr.Append(err, invalid("cpu.count", s.CPU.Count, "must not be negative"))
	}
	err = multierr.Append(err, checkUsage("memory", s.Memory))
	err = multierr.Append(err, checkUsage("disk", s.Disk))

	// Sorted so the combined error text is stable across runs.
	for _, name := range sortedNames(s.EndpointStats) {
		err = multierr.Append(err, checkEndpoint(name, s.EndpointStats[name]))
	}
	return err
}

func checkUsage(prefix string, u UsageStat) error {
	err := checkPercent(prefix+".percent", u.Percent)
	if u.Used > u.Total {
		err = multierr.Append(err, invalid(prefix+".used", u.Used,
			fmt.Sprintf("exceeds total %d", u.Total)))
	}
	return err
}

func checkEndpoint(name string, st EndpointStat) error {
	prefix := fmt.Sprintf("endpoint_stats[%q]", name)
	var err error
	if st.Count < 0 {
		err = multierr.Append(err, invalid(prefix+".count", st.Count, "must not be negative"))
	}
	if math.IsNaN(st.AvgTime) || math.IsInf(st.AvgTime, 0) {
		err = multierr.Append(err, invalid(prefix+".avg_time", st.AvgTime, "must be finite"))
	} else if st.AvgTime < 0 {
		err = multierr.Append(err, invalid(prefix+".avg_time", st.AvgTime, "must not be negative"))
	}
	return multierr.Append(err, checkPercent(prefix+".error_rate", st.ErrorRate))
}

// checkPercent rejects NaN, ±Inf and values outside [0, 100].
func checkPercent(field string, v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return invalid(field, v, "must be finite")
	case v < 0 || v > 100:
		return invalid(field, v, "must be within [0, 100]")
	}
	return nil
}

func invalid(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
