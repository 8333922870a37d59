package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scheme"
)

type schemeRepository struct {
	db *DB
}

var _ scheme.Repository = (*schemeRepository)(nil)

func NewSchemeRepository(db *DB) scheme.Repository {
	return &schemeRepository{db: db}
}

func copyScheme(sch scheme.Scheme) scheme.Scheme {
	sch.Components = append([]scheme.Component(nil), sch.Components...)
	sch.Bands = append([]scheme.Band(nil), sch.Bands...)
	return sch
}

func (repo *schemeRepository) programmeSchemes(programmeID string) []scheme.Scheme {
	schemes := make([]scheme.Scheme, 0)
	for _, sch := range repo.db.schemes {
		if programmeID == "" || sch.ProgrammeID == programmeID {
			schemes = append(schemes, copyScheme(sch))
		}
	}
	sort.Slice(schemes, func(i, j int) bool { return schemes[i].Version > schemes[j].Version })
	return schemes
}

func (repo *schemeRepository) CreateScheme(_ context.Context, sch scheme.Scheme, _ ...core.DBExecutor) (scheme.Scheme, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.schemes {
		if existing.ProgrammeID == sch.ProgrammeID && existing.Version == sch.Version {
			return scheme.Scheme{}, scheme.ErrVersionConflict
		}
	}
	repo.db.schemes[sch.ID] = copyScheme(sch)
	return sch, nil
}

func (repo *schemeRepository) GetScheme(_ context.Context, id string, _ ...core.DBExecutor) (scheme.Scheme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if sch, ok := repo.db.schemes[id]; ok {
		return copyScheme(sch), nil
	}
	return scheme.Scheme{}, scheme.ErrNotFound
}

func (repo *schemeRepository) GetEffectiveScheme(_ context.Context, programmeID string, at time.Time, _ ...core.DBExecutor) (scheme.Scheme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, sch := range repo.programmeSchemes(programmeID) { // newest first
		if !sch.EffectiveFrom.After(at) {
			return sch, nil
		}
	}
	return scheme.Scheme{}, scheme.ErrNotFound
}

func (repo *schemeRepository) GetLatestScheme(_ context.Context, programmeID string, _ ...core.DBExecutor) (scheme.Scheme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if schemes := repo.programmeSchemes(programmeID); len(schemes) > 0 {
		return schemes[0], nil
	}
	return scheme.Scheme{}, scheme.ErrNotFound
}

func (repo *schemeRepository) QuerySchemes(_ context.Context, programmeID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]scheme.Scheme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schemes := repo.programmeSchemes(programmeID)
	sort.SliceStable(schemes, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := schemes[i], schemes[j]
			if !ord.Ascending {
				a, b = b, a
			}
			switch ord.Field {
			case "version":
				if a.Version != b.Version {
					return a.Version < b.Version
				}
			case "effective_from":
				if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
					return a.EffectiveFrom.Before(b.EffectiveFrom)
				}
			case "created_at":
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.Before(b.CreatedAt)
				}
			}
		}
		return false
	})
	return schemes, nil
}
