package compute

import "sort"

// DefaultTopN is the number of endpoints returned by TopByCount when the
// caller does not ask for a specific size.
const DefaultTopN = 10

// Per-endpoint error rate bands used by ErrorRateLevelOf.
const (
	endpointErrorHigh     = 5.0
	endpointErrorElevated = 1.0
)

// ErrorRateLevel classifies a single endpoint's error rate.
type ErrorRateLevel string

const (
	ErrorRateOK       ErrorRateLevel = "ok"
	ErrorRateElevated ErrorRateLevel = "elevated"
	ErrorRateHigh     ErrorRateLevel = "high"
)

// Color returns the display color of the level.
func (l ErrorRateLevel) Color() string {
	switch l {
	case ErrorRateHigh:
		return "red"
	case ErrorRateElevated:
		return "orange"
	default:
		return "green"
	}
}

// ErrorRateLevelOf maps an endpoint error rate to its band:
// > 5 is high, > 1 is elevated, anything else is ok.
func ErrorRateLevelOf(rate float64) ErrorRateLevel {
	switch {
	case rate > endpointErrorHigh:
		return ErrorRateHigh
	case rate > endpointErrorElevated:
		return ErrorRateElevated
	default:
		return ErrorRateOK
	}
}

// RankedEndpoint is one row of the TopByCount result.
type RankedEndpoint struct {
	Endpoint string `json:"endpoint"`
	EndpointStat
}

// Level returns the error rate band of the endpoint.
func (r RankedEndpoint) Level() ErrorRateLevel {
	return ErrorRateLevelOf(r.ErrorRate)
}

// OverallErrorRate returns the arithmetic mean of ErrorRate across stats.
// An empty or nil map yields exactly 0.
//
// Rates are summed in endpoint name order; float addition is not
// associative, so map order would make repeated calls differ in the last bit.
func OverallErrorRate(stats map[string]EndpointStat) float64 {
	if len(stats) == 0 {
		return 0
	}
	var sum float64
	for _, name := range sortedNames(stats) {
		sum += stats[name].ErrorRate
	}
	return sum / float64(len(stats))
}

func sortedNames(stats map[string]EndpointStat) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalRequests returns the sum of Count across stats.
func TotalRequests(stats map[string]EndpointStat) int {
	var total int
	for _, st := range stats {
		total += st.Count
	}
	return total
}

// TopByCount returns the n endpoints with the highest Count, descending.
// Ties are broken by endpoint name ascending so the result never depends on
// map iteration order. n <= 0 means DefaultTopN. If stats has fewer than n
// entries all of them are returned. The result is never nil.
func TopByCount(stats map[string]EndpointStat, n int) []RankedEndpoint {
	if n <= 0 {
		n = DefaultTopN
	}

	ranked := make([]RankedEndpoint, 0, len(stats))
	for name, st := range stats {
		ranked = append(ranked, RankedEndpoint{Endpoint: name, EndpointStat: st})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Endpoint < ranked[j].Endpoint
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
