// Package leaderboard derives per-creator monthly donor rankings. Rows are
// always rebuilt from the full set of contributing gifts.
package leaderboard

import (
	"sort"
	"strings"
	"time"

	"gift-platform/internal/models"
)

const anonymousDonor = "Anonymous"

// Contribution is one settled gift as the aggregation sees it.
type Contribution struct {
	GiftID    string
	DonorName string
	Amount    int64
	At        time.Time
}

// FromHistory and FromLive adapt both storage shapes of a settled gift.
func FromHistory(h models.HistoricalGift) Contribution {
	return Contribution{GiftID: h.OriginalGiftID, DonorName: h.DonorName, Amount: h.Amount, At: h.CreatedAt}
}

func FromLive(g models.Gift) Contribution {
	return Contribution{GiftID: g.ID, DonorName: g.DonorName, Amount: g.Amount, At: g.CreatedAt}
}

// MonthBounds returns the half-open interval [from, to) covered by monthKey.
func MonthBounds(monthKey string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := models.ParseMonthKey(monthKey, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.AddDate(0, 1, 0), nil
}

type donorTotals struct {
	name   string
	total  int64
	count  int
	lastAt time.Time
}

// Compute builds the leaderboard row for one creator and month. A gift seen
// more than once (live and archived) counts once.
func Compute(creatorID int64, creatorHandle, monthKey string, contributions []Contribution, topN int, loc *time.Location, computedAt time.Time) *models.MonthlyLeaderboard {
	if loc == nil {
		loc = time.UTC
	}
	lb := &models.MonthlyLeaderboard{
		CreatorID:     creatorID,
		CreatorHandle: creatorHandle,
		MonthKey:      monthKey,
		TopDonors:     models.DonorRanks{},
		ComputedAt:    computedAt,
	}

	seen := make(map[string]bool, len(contributions))
	donors := make(map[string]*donorTotals)
	days := make(map[string]int64)
	for _, c := range contributions {
		if c.GiftID != "" {
			if seen[c.GiftID] {
				continue
			}
			seen[c.GiftID] = true
		}

		name := strings.TrimSpace(c.DonorName)
		if name == "" {
			name = anonymousDonor
		}
		key := strings.ToLower(name)
		d, ok := donors[key]
		if !ok {
			d = &donorTotals{name: name}
			donors[key] = d
		}
		d.total += c.Amount
		d.count++
		if c.At.After(d.lastAt) {
			d.lastAt = c.At
		}

		lb.TotalAmount += c.Amount
		lb.GiftCount++
		days[c.At.In(loc).Format("2006-01-02")] += c.Amount
	}
	lb.UniqueDonors = len(donors)

	for day, amount := range days {
		if amount > lb.PeakDayAmount || (amount == lb.PeakDayAmount && day < lb.PeakDay) {
			lb.PeakDay = day
			lb.PeakDayAmount = amount
		}
	}

	ranked := make([]*donorTotals, 0, len(donors))
	for _, d := range donors {
		ranked = append(ranked, d)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		switch {
		case a.total != b.total:
			return a.total > b.total
		case a.count != b.count:
			return a.count > b.count
		case !a.lastAt.Equal(b.lastAt):
			return a.lastAt.Before(b.lastAt)
		}
		return a.name < b.name
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for i, d := range ranked {
		lb.TopDonors = append(lb.TopDonors, models.DonorRank{
			Rank:        i + 1,
			Name:        d.name,
			TotalAmount: d.total,
			GiftCount:   d.count,
			LastGiftAt:  d.lastAt,
		})
	}
	return lb
}
