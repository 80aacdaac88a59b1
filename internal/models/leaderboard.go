package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DonorRank is one row of a monthly leaderboard.
type DonorRank struct {
	Rank        int       `json:"rank"`
	Name        string    `json:"name"`
	TotalAmount int64     `json:"total_amount"`
	GiftCount   int       `json:"gift_count"`
	LastGiftAt  time.Time `json:"last_gift_at"`
}

// DonorRanks is stored as a single JSONB column.
type DonorRanks []DonorRank

func (d DonorRanks) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

func (d *DonorRanks) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = DonorRanks{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("DonorRanks: unsupported type %T", src)
}

// MonthlyLeaderboard is a materialized view over one creator's month of
// settled gifts. It is always rebuilt from scratch, never patched.
type MonthlyLeaderboard struct {
	CreatorID     int64      `db:"creator_id" json:"creator_id"`
	CreatorHandle string     `db:"creator_handle" json:"creator_handle"`
	MonthKey      string     `db:"month_key" json:"month_key"`
	TopDonors     DonorRanks `db:"top_donors" json:"top_donors"`
	TotalAmount   int64      `db:"total_amount" json:"total_amount"`
	GiftCount     int        `db:"gift_count" json:"gift_count"`
	UniqueDonors  int        `db:"unique_donors" json:"unique_donors"`
	PeakDay       string     `db:"peak_day" json:"peak_day,omitempty"`
	PeakDayAmount int64      `db:"peak_day_amount" json:"peak_day_amount"`
	ComputedAt    time.Time  `db:"computed_at" json:"computed_at"`
}
