package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func copyGrade(fg grade.FinalGrade) grade.FinalGrade {
	fg.Missing = append(make([]string, 0, len(fg.Missing)), fg.Missing...)
	return fg
}

func (repo *gradeRepository) GetFinalGrade(_ context.Context, key mark.Key, _ ...core.DBExecutor) (grade.FinalGrade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if fg, ok := repo.db.grades[key]; ok {
		return copyGrade(fg), nil
	}
	return grade.FinalGrade{}, grade.ErrNotFound
}

func (repo *gradeRepository) GetGeneration(_ context.Context, key mark.Key, _ ...core.DBExecutor) (int64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.generations[key], nil
}

func (repo *gradeRepository) SaveFinalGrade(_ context.Context, fg grade.FinalGrade, _ ...core.DBExecutor) (grade.FinalGrade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	fg.Stale = repo.db.generations[fg.Key()] != fg.Generation
	fg = copyGrade(fg)
	repo.db.grades[fg.Key()] = fg
	return copyGrade(fg), nil
}

func (repo *gradeRepository) MarkStale(_ context.Context, key mark.Key, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.generations[key]++
	if fg, ok := repo.db.grades[key]; ok {
		fg.Stale = true
		repo.db.grades[key] = fg
	}
	return nil
}

func (repo *gradeRepository) QueryStaleKeys(_ context.Context, limit int, _ ...core.DBExecutor) ([]mark.Key, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stale := make([]grade.FinalGrade, 0)
	for _, fg := range repo.db.grades {
		if fg.Stale {
			stale = append(stale, fg)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].ComputedAt.Equal(stale[j].ComputedAt) {
			return stale[i].ComputedAt.Before(stale[j].ComputedAt)
		}
		return stale[i].Key().String() < stale[j].Key().String()
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	keys := make([]mark.Key, len(stale))
	for i, fg := range stale {
		keys[i] = fg.Key()
	}
	return keys, nil
}
