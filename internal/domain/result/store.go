package result

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/google/uuid"
)

// Store - единственная точка записи результатов и компонентов.
// Живёт в рамках одной транзакции: создаётся поверх репозитория единицы работы.
type Store struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// StoreOption настраивает Store.
type StoreOption func(*Store)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewStore создаёт Store поверх репозитория.
func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft создаёт черновик результата.
// Если тройка уже занята, возвращает существующий результат и existing = true:
// повторный вход преподавателя идемпотентен.
func (s *Store) CreateDraft(ctx context.Context, studentID, courseID, semesterID string) (*Result, bool, error) {
	r, err := NewDraft(s.newID(), studentID, courseID, semesterID, s.now())
	if err != nil {
		return nil, false, err
	}

	err = s.repo.Create(ctx, r)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, shared.ErrDuplicateResult) {
		return nil, false, err
	}

	existing, getErr := s.repo.GetByKey(ctx, studentID, courseID, semesterID)
	if getErr != nil {
		return nil, false, fmt.Errorf("failed to load existing result: %w", getErr)
	}
	return existing, true, nil
}

// AddComponent добавляет компонент в черновик.
// Возвращает ErrResultLocked, если результат не в draft.
func (s *Store) AddComponent(ctx context.Context, resultID string, in ComponentInput) (*Component, error) {
	if _, err := s.lockEditable(ctx, resultID); err != nil {
		return nil, err
	}

	c, err := NewComponent(s.newID(), resultID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddComponent(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateComponent меняет баллы или вес компонента черновика.
// Возвращает ErrResultLocked, если результат не в draft.
func (s *Store) UpdateComponent(ctx context.Context, resultID, componentID string, in ComponentInput) (*Component, error) {
	if _, err := s.lockEditable(ctx, resultID); err != nil {
		return nil, err
	}

	c, err := s.findComponent(ctx, resultID, componentID)
	if err != nil {
		return nil, err
	}
	if err := c.Update(in, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateComponent(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveComponent удаляет компонент черновика.
func (s *Store) RemoveComponent(ctx context.Context, resultID, componentID string) error {
	if _, err := s.lockEditable(ctx, resultID); err != nil {
		return err
	}
	if _, err := s.findComponent(ctx, resultID, componentID); err != nil {
		return err
	}
	return s.repo.RemoveComponent(ctx, resultID, componentID)
}

// Components возвращает компоненты результата.
func (s *Store) Components(ctx context.Context, resultID string) ([]*Component, error) {
	if _, err := s.repo.GetByID(ctx, resultID); err != nil {
		return nil, err
	}
	return s.repo.Components(ctx, resultID)
}

// Grade возвращает итоговую оценку результата.
func (s *Store) Grade(ctx context.Context, resultID string) (*Grade, error) {
	return s.repo.Grade(ctx, resultID)
}

func (s *Store) lockEditable(ctx context.Context, resultID string) (*Result, error) {
	r, err := s.repo.GetForUpdate(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if !r.IsEditable() {
		return nil, fmt.Errorf("result %s is %s: %w", r.ID, r.Status, shared.ErrResultLocked)
	}
	return r, nil
}

func (s *Store) findComponent(ctx context.Context, resultID, componentID string) (*Component, error) {
	components, err := s.repo.Components(ctx, resultID)
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		if c.ID == componentID {
			return c, nil
		}
	}
	return nil, shared.ErrComponentNotFound
}
