// Package archive moves settled gifts out of the live table into monthly
// history and rebuilds the leaderboards they feed.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/models"
)

type Store interface {
	PaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Gift, error)
	ArchiveGift(ctx context.Context, h *models.HistoricalGift) (bool, error)
}

// Recomputer rebuilds one creator's leaderboard for a month.
type Recomputer interface {
	Recompute(ctx context.Context, creatorID int64, creatorHandle, monthKey string) (*models.MonthlyLeaderboard, error)
}

// Sink receives newly archived gifts, e.g. an analytics mirror. Failures
// are logged only.
type Sink interface {
	RecordArchived(ctx context.Context, gifts []models.HistoricalGift) error
}

// Summary reports one archival run.
type Summary struct {
	Total              int      `json:"total"`
	Archived           int      `json:"archived"`
	AlreadyArchived    int      `json:"alreadyArchived"`
	Failed             int      `json:"failed"`
	LeaderboardUpdated int      `json:"leaderboardUpdated"`
	Errors             []string `json:"errors"`
}

type Config struct {
	Retention time.Duration
	Location  *time.Location
}

type touchedCreator struct {
	handle string
	months map[string]bool
}

type Pipeline struct {
	store        Store
	leaderboards Recomputer
	sink         Sink
	cfg          Config
	log          *logger.Logger
	now          func() time.Time

	mu sync.Mutex
}

func NewPipeline(st Store, leaderboards Recomputer, sink Sink, cfg Config, log *logger.Logger) *Pipeline {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{store: st, leaderboards: leaderboards, sink: sink, cfg: cfg, log: log, now: time.Now}
}

// Run archives every PAID gift older than the retention window. A failing
// gift is reported in the summary and never stops the batch; running again
// converges.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	gifts, err := p.store.PaidCreatedBefore(ctx, now.Add(-p.cfg.Retention))
	if err != nil {
		return nil, apperr.Persistence("select archivable gifts", err)
	}

	summary := &Summary{Total: len(gifts), Errors: []string{}}
	touched := make(map[int64]*touchedCreator)
	var fresh []models.HistoricalGift

	for i := range gifts {
		if err := ctx.Err(); err != nil {
			summary.Failed += len(gifts) - i
			summary.Errors = append(summary.Errors, fmt.Sprintf("run interrupted: %v", err))
			break
		}
		g := &gifts[i]
		h := models.NewHistoricalGift(uuid.NewString(), g, p.cfg.Location, now)
		created, err := p.store.ArchiveGift(ctx, h)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("gift %s: %v", g.Ref, err))
			p.log.Errorw("archive gift failed", "ref", g.Ref, "error", err)
			continue
		}

		summary.Archived++
		if created {
			fresh = append(fresh, *h)
		} else {
			summary.AlreadyArchived++
			p.log.Infow("gift already archived, removed live copy", "ref", g.Ref)
		}

		tc, ok := touched[g.CreatorID]
		if !ok {
			tc = &touchedCreator{handle: g.CreatorHandle, months: make(map[string]bool)}
			touched[g.CreatorID] = tc
		}
		tc.months[h.MonthKey] = true
	}

	_, _, current := models.MonthKeyOf(now, p.cfg.Location)
	creatorIDs := make([]int64, 0, len(touched))
	for id := range touched {
		creatorIDs = append(creatorIDs, id)
	}
	sort.Slice(creatorIDs, func(i, j int) bool { return creatorIDs[i] < creatorIDs[j] })

	for _, id := range creatorIDs {
		tc := touched[id]
		tc.months[current] = true
		for _, month := range sortedKeys(tc.months) {
			if _, err := p.leaderboards.Recompute(ctx, id, tc.handle, month); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("leaderboard %d/%s: %v", id, month, err))
				p.log.Errorw("leaderboard recompute failed", "creator_id", id, "month", month, "error", err)
				continue
			}
			summary.LeaderboardUpdated++
		}
	}

	if p.sink != nil && len(fresh) > 0 {
		if err := p.sink.RecordArchived(ctx, fresh); err != nil {
			p.log.Warnw("analytics mirror failed", "gifts", len(fresh), "error", err)
		}
	}

	p.log.Infow("archival run finished",
		"total", summary.Total, "archived", summary.Archived, "already_archived", summary.AlreadyArchived,
		"failed", summary.Failed, "leaderboards", summary.LeaderboardUpdated)
	return summary, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
