package stickers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Api = (*mockRepo)(nil)

type mockRepo struct {
	mu       sync.Mutex
	Stickers []Sticker

	// set to fail the next call(s)
	AddErr  error
	ListErr error

	AddCalls  int
	ListCalls int

	now time.Time
}

func NewMockRepo() *mockRepo {
	return &mockRepo{
		Stickers: make([]Sticker, 0),
		now:      time.Now(),
	}
}

func (m *mockRepo) Add(_ context.Context, sticker Sticker) (Sticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddCalls++
	if m.AddErr != nil {
		return Sticker{}, m.AddErr
	}

	sticker.ID = uuid.New()
	// each insert commits strictly after the previous one
	m.now = m.now.Add(time.Second)
	sticker.CreatedAt = m.now
	m.Stickers = append(m.Stickers, sticker)
	return sticker, nil
}

func (m *mockRepo) List(_ context.Context) ([]Sticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	listed := make([]Sticker, len(m.Stickers))
	copy(listed, m.Stickers)
	sort.Slice(listed, func(i, j int) bool {
		return listed[i].CreatedAt.After(listed[j].CreatedAt)
	})
	return listed, nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Stickers), nil
}
