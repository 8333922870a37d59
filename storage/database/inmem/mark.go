package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/mark"
)

type markRepository struct {
	db *DB
}

var _ mark.Repository = (*markRepository)(nil)

func NewMarkRepository(db *DB) mark.Repository {
	return &markRepository{db: db}
}

func (repo *markRepository) UpsertMark(_ context.Context, m mark.Mark, _ ...core.DBExecutor) (mark.Mark, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, locked := repo.db.locks[lockID{unitID: m.UnitID, semesterID: m.SemesterID}]; locked {
		return mark.Mark{}, &core.LockedError{UnitID: m.UnitID, SemesterID: m.SemesterID}
	}
	id := markID{key: m.Key(), componentID: m.ComponentID}
	if existing, ok := repo.db.marks[id]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	}
	repo.db.marks[id] = m
	return m, nil
}

func (repo *markRepository) QueryMarks(_ context.Context, key mark.Key, _ ...core.DBExecutor) ([]mark.Mark, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	marks := make([]mark.Mark, 0)
	for _, m := range repo.db.marks {
		if (key.StudentID == "" || m.StudentID == key.StudentID) &&
			(key.UnitID == "" || m.UnitID == key.UnitID) &&
			(key.SemesterID == "" || m.SemesterID == key.SemesterID) {
			marks = append(marks, m)
		}
	}
	sort.Slice(marks, func(i, j int) bool {
		if !marks[i].CreatedAt.Equal(marks[j].CreatedAt) {
			return marks[i].CreatedAt.Before(marks[j].CreatedAt)
		}
		return marks[i].ID < marks[j].ID
	})
	return marks, nil
}

func (repo *markRepository) GetLock(_ context.Context, unitID, semesterID string, _ ...core.DBExecutor) (mark.Lock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if lock, ok := repo.db.locks[lockID{unitID: unitID, semesterID: semesterID}]; ok {
		return lock, nil
	}
	return mark.Lock{}, mark.ErrLockNotFound
}

func (repo *markRepository) CreateLock(_ context.Context, lock mark.Lock, _ ...core.DBExecutor) (mark.Lock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	id := lockID{unitID: lock.UnitID, semesterID: lock.SemesterID}
	if _, ok := repo.db.locks[id]; ok {
		return mark.Lock{}, mark.ErrAlreadyLocked
	}
	repo.db.locks[id] = lock
	return lock, nil
}

func (repo *markRepository) DeleteLock(_ context.Context, unitID, semesterID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	id := lockID{unitID: unitID, semesterID: semesterID}
	if _, ok := repo.db.locks[id]; !ok {
		return mark.ErrLockNotFound
	}
	delete(repo.db.locks, id)
	return nil
}
