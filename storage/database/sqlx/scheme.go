package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scheme"
)

const schemeColumns = `id, programme_id, version, effective_from, created_by, created_at`

type schemeRepository struct {
	base
}

var _ scheme.Repository = (*schemeRepository)(nil)

func NewSchemeRepository(db *sqlx.DB) scheme.Repository {
	return &schemeRepository{base{db: db}}
}

// CreateScheme inserts the scheme with its components and bands. Callers run it in a transaction.
func (repo *schemeRepository) CreateScheme(ctx context.Context, sch scheme.Scheme, exec ...core.DBExecutor) (scheme.Scheme, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO grading_schemes (` + schemeColumns + `)
		VALUES (:id, :programme_id, :version, :effective_from, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, sch); err != nil {
		if isUniqueViolation(err) {
			return scheme.Scheme{}, scheme.ErrVersionConflict
		}
		return scheme.Scheme{}, errors.Wrap(err, "inserting grading scheme")
	}

	for _, c := range sch.Components {
		q = `INSERT INTO assessment_components (id, scheme_id, name, component_type, weight, max_score, position)
			VALUES (:id, :scheme_id, :name, :component_type, :weight, :max_score, :position)`
		if _, err := sqlx.NamedExecContext(ctx, exe, q, c); err != nil {
			return scheme.Scheme{}, errors.Wrap(err, "inserting assessment component")
		}
	}
	for _, b := range sch.Bands {
		q = `INSERT INTO grade_bands (scheme_id, grade, min_score, grade_point, description, passing)
			VALUES (:scheme_id, :grade, :min_score, :grade_point, :description, :passing)`
		if _, err := sqlx.NamedExecContext(ctx, exe, q, b); err != nil {
			return scheme.Scheme{}, errors.Wrap(err, "inserting grade band")
		}
	}
	return sch, nil
}

// load fills in the components and bands of sch.
func (repo *schemeRepository) load(ctx context.Context, exe sqlx.ExtContext, sch *scheme.Scheme) error {
	sch.Components = make([]scheme.Component, 0)
	err := sqlx.SelectContext(ctx, exe, &sch.Components,
		`SELECT id, scheme_id, name, component_type, weight, max_score, position
		FROM assessment_components WHERE scheme_id = $1 ORDER BY position`, sch.ID)
	if err != nil {
		return errors.Wrap(err, "querying assessment components")
	}
	sch.Bands = make([]scheme.Band, 0)
	err = sqlx.SelectContext(ctx, exe, &sch.Bands,
		`SELECT scheme_id, grade, min_score, grade_point, description, passing
		FROM grade_bands WHERE scheme_id = $1 ORDER BY min_score DESC`, sch.ID)
	if err != nil {
		return errors.Wrap(err, "querying grade bands")
	}
	sch.EffectiveFrom = sch.EffectiveFrom.UTC()
	return nil
}

func (repo *schemeRepository) getOne(ctx context.Context, exec []core.DBExecutor, msg, where string, args ...interface{}) (scheme.Scheme, error) {
	exe := repo.getExec(exec)
	var sch scheme.Scheme
	if err := sqlx.GetContext(ctx, exe, &sch, `SELECT `+schemeColumns+` FROM grading_schemes `+where, args...); err != nil {
		return scheme.Scheme{}, trapNoRowsErr(err, scheme.ErrNotFound, msg)
	}
	if err := repo.load(ctx, exe, &sch); err != nil {
		return scheme.Scheme{}, err
	}
	return sch, nil
}

func (repo *schemeRepository) GetScheme(ctx context.Context, id string, exec ...core.DBExecutor) (scheme.Scheme, error) {
	return repo.getOne(ctx, exec, "finding grading scheme", `WHERE id = $1`, id)
}

func (repo *schemeRepository) GetEffectiveScheme(ctx context.Context, programmeID string, at time.Time, exec ...core.DBExecutor) (scheme.Scheme, error) {
	return repo.getOne(ctx, exec, "finding effective grading scheme",
		`WHERE programme_id = $1 AND effective_from <= $2 ORDER BY effective_from DESC, version DESC LIMIT 1`,
		programmeID, at.UTC())
}

func (repo *schemeRepository) GetLatestScheme(ctx context.Context, programmeID string, exec ...core.DBExecutor) (scheme.Scheme, error) {
	return repo.getOne(ctx, exec, "finding latest grading scheme",
		`WHERE programme_id = $1 ORDER BY version DESC LIMIT 1`, programmeID)
}

// QuerySchemes expects ordering fields to be whitelisted by the caller.
func (repo *schemeRepository) QuerySchemes(ctx context.Context, programmeID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]scheme.Scheme, error) {
	exe := repo.getExec(exec)
	q := `SELECT ` + schemeColumns + ` FROM grading_schemes WHERE ($1 = '' OR programme_id = $1)`
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += ` ORDER BY ` + strings.Join(orderList, ", ")
	}

	schemes := make([]scheme.Scheme, 0)
	if err := sqlx.SelectContext(ctx, exe, &schemes, q, programmeID); err != nil {
		return nil, errors.Wrap(err, "querying grading schemes")
	}
	for i := range schemes {
		if err := repo.load(ctx, exe, &schemes[i]); err != nil {
			return nil, err
		}
	}
	return schemes, nil
}
