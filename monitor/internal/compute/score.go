package compute

// Deduction thresholds and weights for the health score. cpu, memory and
// disk deduct weight × (value − threshold); the api error rate deducts
// weight × value once it passes its threshold.
const (
	cpuThreshold    = 50.0
	cpuWeight       = 0.5
	memoryThreshold = 60.0
	memoryWeight    = 0.7
	diskThreshold   = 70.0
	diskWeight      = 0.5
	apiThreshold    = 1.0
	apiWeight       = 5.0

	maxScore = 100.0
)

// Deductions holds the points removed from the starting score per signal.
// Useful for rendering per-dimension breakdowns.
type Deductions struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
	API    float64 `json:"api"`
}

// Total is the sum of all deductions before clamping.
func (d Deductions) Total() float64 {
	return d.CPU + d.Memory + d.Disk + d.API
}

// Output is the result of the health score calculation.
type Output struct {
	// Score is the composite health score in the range 0–100.
	Score float64

	Deductions Deductions
}

// Compute calculates the health score for in:
//
//	score = 100
//	    - (cpu - 50)    * 0.5   if cpu > 50
//	    - (memory - 60) * 0.7   if memory > 60
//	    - (disk - 70)   * 0.5   if disk > 70
//	    - api_error_rate * 5    if api_error_rate > 1
//
// and clamps the result to [0, 100]. Note the api term uses the full rate,
// not the excess over its threshold.
//
// Compute does not validate its input; out-of-range values still produce a
// score in [0, 100]. Use Snapshot.Validate at the boundary.
func Compute(in Input) Output {
	d := Deductions{
		CPU:    excess(in.CPU, cpuThreshold) * cpuWeight,
		Memory: excess(in.Memory, memoryThreshold) * memoryWeight,
		Disk:   excess(in.Disk, diskThreshold) * diskWeight,
	}
	if in.APIErrorRate > apiThreshold {
		d.API = in.APIErrorRate * apiWeight
	}

	return Output{
		Score:      clamp(maxScore-d.Total(), 0, maxScore),
		Deductions: d,
	}
}

// excess returns v - threshold when v is above threshold, otherwise 0.
func excess(v, threshold float64) float64 {
	if v > threshold {
		return v - threshold
	}
	return 0
}

// clamp restricts v to the range [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v >= lo {
		return v
	}
	return lo
}
