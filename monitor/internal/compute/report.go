package compute

// Report is the full engine output for one snapshot.
type Report struct {
	Score      float64    `json:"score"`
	Tier       Tier       `json:"tier"`
	Deductions Deductions `json:"deductions"`

	// AvgErrorRate is OverallErrorRate of the snapshot's endpoint stats.
	AvgErrorRate  float64 `json:"avg_error_rate"`
	TotalRequests int     `json:"total_requests"`

	Alerts []Alert  `json:"alerts"`
	Banner Severity `json:"banner,omitempty"`

	TopEndpoints []RankedEndpoint `json:"top_endpoints"`
}

// Analyze validates snap and runs the full pipeline on it: endpoint
// aggregation, health score, tier, alerts and banner. topN sizes the
// TopEndpoints ranking (<= 0 means DefaultTopN).
//
// On validation failure Analyze returns the zero Report and an error that
// wraps ErrInvalidSnapshot; it never clamps or guesses invalid input.
func Analyze(snap Snapshot, topN int) (Report, error) {
	if err := snap.Validate(); err != nil {
		return Report{}, err
	}

	avg := OverallErrorRate(snap.EndpointStats)
	in := snap.Input(avg)
	out := Compute(in)
	alerts := Evaluate(in)

	return Report{
		Score:         out.Score,
		Tier:          Classify(out.Score),
		Deductions:    out.Deductions,
		AvgErrorRate:  avg,
		TotalRequests: TotalRequests(snap.EndpointStats),
		Alerts:        alerts,
		Banner:        Banner(alerts),
		TopEndpoints:  TopByCount(snap.EndpointStats, topN),
	}, nil
}
