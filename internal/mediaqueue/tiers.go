package mediaqueue

// MaxSeconds is the longest any single media item may play.
const MaxSeconds = 300

type tier struct {
	minAmount int64
	seconds   int
}

// tiers must stay sorted by minAmount, highest first.
var tiers = []tier{
	{minAmount: 150000, seconds: 300},
	{minAmount: 100000, seconds: 240},
	{minAmount: 50000, seconds: 120},
	{minAmount: 25000, seconds: 60},
	{minAmount: 10000, seconds: 30},
	{minAmount: 5000, seconds: 15},
	{minAmount: 0, seconds: 10},
}

// TierSeconds returns the playback allowance bought by amount.
func TierSeconds(amount int64) int {
	for _, t := range tiers {
		if amount >= t.minAmount {
			return min(t.seconds, MaxSeconds)
		}
	}
	return tiers[len(tiers)-1].seconds
}

// DurationFor caps the tier allowance by the donor's requested length, when
// one was given.
func DurationFor(amount int64, requested int) int {
	seconds := TierSeconds(amount)
	if requested > 0 && requested < seconds {
		seconds = requested
	}
	return seconds
}
