// Package compute turns a metrics snapshot into a health report.
//
// endpoints.go reduces per-endpoint performance stats into an overall error
// rate and a ranked top-N view (count descending, endpoint name ascending).
//
// score.go provides the pure Compute(Input) function: a deductive score that
// starts at 100 and subtracts points for cpu > 50, memory > 60, disk > 70 and
// api error rate > 1, clamped to 0–100.
//
// tier.go maps a score to one of five ordered tiers:
// excellent ≥90, good ≥75, moderate ≥60, poor ≥40, critical otherwise.
//
// alerts.go evaluates cpu → memory → disk → api against warn/error
// thresholds and derives the banner severity for the resulting list.
//
// report.go validates a Snapshot and composes the above into a Report.
//
// Nothing in this package holds state, logs, or performs I/O; every function
// returns the same output for the same input and is safe for concurrent use.
package compute
