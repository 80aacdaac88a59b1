package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

func (s *Store) EnqueueItem(_ context.Context, item *models.MediaQueueItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.queueByGift[item.SourceGiftRef]; ok {
		*item = *cloneItem(s.queue[id])
		return false, nil
	}
	s.maxPosition[item.CreatorID]++
	item.QueuePosition = s.maxPosition[item.CreatorID]
	item.Status = models.QueuePending
	s.queue[item.ID] = cloneItem(item)
	s.queueByGift[item.SourceGiftRef] = item.ID
	return true, nil
}

func (s *Store) QueueItem(_ context.Context, id string) (*models.MediaQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.queue[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *Store) QueueItemByGift(_ context.Context, ref string) (*models.MediaQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.queueByGift[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneItem(s.queue[id]), nil
}

func (s *Store) ActiveItems(_ context.Context, creatorHandle string) ([]models.MediaQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.MediaQueueItem
	for _, item := range s.queue {
		if item.CreatorHandle == creatorHandle && !item.Status.Finished() {
			out = append(out, *cloneItem(item))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) StartPlaying(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[id]
	if !ok || item.Status != models.QueuePending {
		return false, nil
	}
	for _, other := range s.queue {
		if other.CreatorID == item.CreatorID && other.Status == models.QueuePlaying {
			return false, store.ErrPlaying
		}
	}
	item.Status = models.QueuePlaying
	item.StartedAt = &at
	return true, nil
}

func (s *Store) FinishItem(_ context.Context, id string, status models.QueueStatus, at time.Time, actualSeconds int, reason string) (bool, error) {
	if !status.Finished() {
		return false, fmt.Errorf("finish queue item: invalid status %s", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[id]
	if !ok || item.Status.Finished() {
		return false, nil
	}
	item.Status = status
	item.PlayedAt = &at
	item.SkipReason = reason
	if actualSeconds > 0 {
		item.ActualSeconds = actualSeconds
	}
	return true, nil
}

func cloneItem(item *models.MediaQueueItem) *models.MediaQueueItem {
	cp := *item
	if item.StartedAt != nil {
		t := *item.StartedAt
		cp.StartedAt = &t
	}
	if item.PlayedAt != nil {
		t := *item.PlayedAt
		cp.PlayedAt = &t
	}
	return &cp
}
