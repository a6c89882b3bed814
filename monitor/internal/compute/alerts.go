package compute

import "fmt"

// Severity is the level of a single Alert, and also the banner level of an
// alert list.
type Severity string

const (
	SeverityNone    Severity = ""
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Metric identifies the signal an Alert was raised for.
type Metric string

const (
	MetricCPU    Metric = "cpu"
	MetricMemory Metric = "memory"
	MetricDisk   Metric = "disk"
	MetricAPI    Metric = "api"
)

// Alert is one threshold breach. Alerts are produced fresh on every
// evaluation and never mutated afterwards.
type Alert struct {
	Severity Severity `json:"severity"`
	Metric   Metric   `json:"metric"`
	Message  string   `json:"message"`
}

// alertRule describes the warn/error thresholds of one metric. A value must
// be strictly greater than a threshold to breach it.
type alertRule struct {
	metric  Metric
	name    string
	warnAt  float64
	errorAt float64
	value   func(Input) float64
}

// alertRules is the evaluation order, which is also the output order.
var alertRules = [...]alertRule{
	{MetricCPU, "CPU usage", 80, 90, func(in Input) float64 { return in.CPU }},
	{MetricMemory, "Memory usage", 80, 90, func(in Input) float64 { return in.Memory }},
	{MetricDisk, "Disk usage", 80, 90, func(in Input) float64 { return in.Disk }},
	{MetricAPI, "API average error rate", 5, 10, func(in Input) float64 { return in.APIErrorRate }},
}

// Evaluate checks cpu, memory, disk and api (in that order) against their
// thresholds. Each metric yields at most one alert: error when above the
// error threshold, otherwise warning when above the warn threshold.
// The result is empty, never nil, when nothing breaches.
func Evaluate(in Input) []Alert {
	out := make([]Alert, 0, len(alertRules))
	for _, r := range alertRules {
		v := r.value(in)
		switch {
		case v > r.errorAt:
			out = append(out, Alert{
				Severity: SeverityError,
				Metric:   r.metric,
				Message:  fmt.Sprintf("%s critical: %.1f%%", r.name, v),
			})
		case v > r.warnAt:
			out = append(out, Alert{
				Severity: SeverityWarning,
				Metric:   r.metric,
				Message:  fmt.Sprintf("%s high: %.1f%%", r.name, v),
			})
		}
	}
	return out
}

// Banner derives the display emphasis for an alert list: error if any alert
// is an error, warning if the list is non-empty, SeverityNone otherwise.
func Banner(alerts []Alert) Severity {
	banner := SeverityNone
	for _, a := range alerts {
		if a.Severity == SeverityError {
			return SeverityError
		}
		banner = SeverityWarning
	}
	return banner
}

// Count returns how many alerts in the list have severity s.
func Count(alerts []Alert, s Severity) int {
	var n int
	for _, a := range alerts {
		if a.Severity == s {
			n++
		}
	}
	return n
}
