package record

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore はプロセス内のマップに記録を保持する
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore は新しいMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Create は記録を追加し、IDと時刻を付与する
func (s *MemoryStore) Create(_ context.Context, in Input) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:          uuid.NewString(),
		PlateNumber: in.PlateNumber,
		Confidence:  in.Confidence,
		Timestamp:   s.now(),
		ImageData:   in.ImageData,
		Processed:   in.Processed,
		Notes:       in.Notes,
	}
	s.records[rec.ID] = rec
	return &rec, nil
}

// Get はIDで記録を取得する
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// List は条件に合う記録を並べ替えて返す
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.matches(rec) {
			records = append(records, rec)
		}
	}
	sortRecords(records, opts.Sort)
	return records, nil
}

// Recent は新しい順に最大 limit 件を返す
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	records, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Today は当日作成された記録を返す
func (s *MemoryStore) Today(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.todayLocked(), nil
}

// Delete は記録を削除する。存在しなければ false を返す
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

// Stats は件数と成功率を集計する
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	processed := 0
	for _, rec := range s.records {
		if rec.Processed == 1 {
			processed++
		}
	}

	return Stats{
		Total:       len(s.records),
		Today:       len(s.todayLocked()),
		SuccessRate: successRate(processed, len(s.records)),
	}, nil
}

// Close は何もしない
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) todayLocked() []Record {
	since := startOfDay(s.now())
	var records []Record
	for _, rec := range s.records {
		if !rec.Timestamp.Before(since) {
			records = append(records, rec)
		}
	}
	sortRecords(records, SortByTimestamp)
	return records
}
