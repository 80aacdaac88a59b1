package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

func at(day, hour int) time.Time {
	return time.Date(2026, 9, day, hour, 0, 0, 0, wib)
}

func TestComputeRanksDonors(t *testing.T) {
	contributions := []Contribution{
		{GiftID: "g1", DonorName: "Budi", Amount: 50000, At: at(1, 10)},
		{GiftID: "g2", DonorName: "sari", Amount: 20000, At: at(2, 10)},
		{GiftID: "g3", DonorName: "Sari ", Amount: 40000, At: at(3, 10)},
		{GiftID: "g4", DonorName: "", Amount: 5000, At: at(3, 11)},
		{GiftID: "g5", DonorName: "Dewi", Amount: 10000, At: at(4, 10)},
	}
	computedAt := at(30, 0)
	lb := Compute(1, "alice", "2026-09", contributions, 3, wib, computedAt)

	assert.Equal(t, int64(125000), lb.TotalAmount)
	assert.Equal(t, 5, lb.GiftCount)
	assert.Equal(t, 4, lb.UniqueDonors)
	assert.Equal(t, computedAt, lb.ComputedAt)

	require.Len(t, lb.TopDonors, 3)
	assert.Equal(t, "sari", lb.TopDonors[0].Name)
	assert.Equal(t, int64(60000), lb.TopDonors[0].TotalAmount)
	assert.Equal(t, 2, lb.TopDonors[0].GiftCount)
	assert.Equal(t, at(3, 10), lb.TopDonors[0].LastGiftAt)
	assert.Equal(t, 1, lb.TopDonors[0].Rank)
	assert.Equal(t, "Budi", lb.TopDonors[1].Name)
	assert.Equal(t, "Dewi", lb.TopDonors[2].Name)
	assert.Equal(t, 3, lb.TopDonors[2].Rank)

	assert.Equal(t, "2026-09-01", lb.PeakDay)
	assert.Equal(t, int64(50000), lb.PeakDayAmount)
}

func TestComputeCountsEachGiftOnce(t *testing.T) {
	g := Contribution{GiftID: "g1", DonorName: "Budi", Amount: 50000, At: at(1, 10)}
	// The same gift seen live and in history after a partial archival run.
	lb := Compute(1, "alice", "2026-09", []Contribution{g, g}, 10, wib, at(2, 0))

	assert.Equal(t, int64(50000), lb.TotalAmount)
	assert.Equal(t, 1, lb.GiftCount)
	require.Len(t, lb.TopDonors, 1)
	assert.Equal(t, 1, lb.TopDonors[0].GiftCount)
}

func TestComputePeakDayUsesPlatformTimezone(t *testing.T) {
	// 18:00 UTC on the 1st is already the 2nd in WIB.
	late := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	lb := Compute(1, "alice", "2026-09", []Contribution{
		{GiftID: "g1", DonorName: "Budi", Amount: 30000, At: late},
		{GiftID: "g2", DonorName: "Sari", Amount: 10000, At: at(1, 9)},
	}, 10, wib, at(5, 0))

	assert.Equal(t, "2026-09-02", lb.PeakDay)
	assert.Equal(t, int64(30000), lb.PeakDayAmount)
}

func TestComputeEmpty(t *testing.T) {
	lb := Compute(1, "alice", "2026-09", nil, 10, wib, at(5, 0))
	assert.Zero(t, lb.TotalAmount)
	assert.Zero(t, lb.GiftCount)
	assert.Empty(t, lb.TopDonors)
	assert.NotNil(t, lb.TopDonors)
	assert.Empty(t, lb.PeakDay)
}

func TestComputeAnonymousDonor(t *testing.T) {
	lb := Compute(1, "alice", "2026-09", []Contribution{
		{GiftID: "g1", Amount: 1000, At: at(1, 1)},
		{GiftID: "g2", DonorName: "  ", Amount: 2000, At: at(1, 2)},
	}, 10, wib, at(5, 0))
	require.Len(t, lb.TopDonors, 1)
	assert.Equal(t, "Anonymous", lb.TopDonors[0].Name)
	assert.Equal(t, int64(3000), lb.TopDonors[0].TotalAmount)
}

func TestMonthBounds(t *testing.T) {
	from, to, err := MonthBounds("2026-12", wib)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, wib), from)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, wib), to)

	_, _, err = MonthBounds("2026-13", wib)
	assert.Error(t, err)
}
