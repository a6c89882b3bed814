package compute

// Tier labels, ordered best to worst.
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierModerate  = "moderate"
	TierPoor      = "poor"
	TierCritical  = "critical"
)

// Tier is a named score band with its display color.
// A score belongs to the first tier (top-down) whose Lower bound it reaches.
type Tier struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Lower float64 `json:"lower"`
}

// tiers is evaluated top-down; the last row has Lower 0 so the table is total
// over [0, 100].
var tiers = [...]Tier{
	{Label: TierExcellent, Color: "#52c41a", Lower: 90},
	{Label: TierGood, Color: "#1890ff", Lower: 75},
	{Label: TierModerate, Color: "#faad14", Lower: 60},
	{Label: TierPoor, Color: "#ff7a45", Lower: 40},
	{Label: TierCritical, Color: "#ff4d4f", Lower: 0},
}

// Tiers returns a copy of the tier table, best first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers[:])
	return out
}

// Classify maps a score to its tier. Scores below 0 (or NaN) fall into the
// critical tier.
func Classify(score float64) Tier {
	for _, t := range tiers {
		if score >= t.Lower {
			return t
		}
	}
	return tiers[len(tiers)-1]
}
