package mtproto

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/session"

	"tgfeed/internal/domain"
)

// SessionDB хранит сессию gotd в репозитории под заданным именем.
// Последняя записанная версия кэшируется для Checkpoint.
type SessionDB struct {
	repo domain.SessionRepo
	name string

	mu   sync.Mutex
	last []byte
}

// NewSessionDB создаёт хранилище сессии.
func NewSessionDB(repo domain.SessionRepo, name string) *SessionDB {
	return &SessionDB{repo: repo, name: name}
}

// LoadSession загружает сессию, session.ErrNotFound означает её отсутствие.
func (s *SessionDB) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := s.repo.LoadMTProtoSession(ctx, s.name)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("mtproto: загрузка сессии %q: %w", s.name, err)
	}
	s.remember(data)
	return data, nil
}

// StoreSession сохраняет сессию.
func (s *SessionDB) StoreSession(ctx context.Context, data []byte) error {
	if err := s.repo.StoreMTProtoSession(ctx, s.name, data); err != nil {
		return fmt.Errorf("mtproto: сохранение сессии %q: %w", s.name, err)
	}
	s.remember(data)
	return nil
}

// Flush повторно записывает последнюю известную сессию.
func (s *SessionDB) Flush(ctx context.Context) error {
	s.mu.Lock()
	data := s.last
	s.mu.Unlock()
	if data == nil {
		return nil
	}
	return s.StoreSession(ctx, data)
}

func (s *SessionDB) remember(data []byte) {
	s.mu.Lock()
	s.last = append([]byte(nil), data...)
	s.mu.Unlock()
}
