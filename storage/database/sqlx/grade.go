package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
)

const gradeColumns = `student_id, unit_id, semester_id, scheme_id, scheme_version, status,
	total, grade, grade_point, passed, missing, generation, stale, computed_at`

type gradeRow struct {
	grade.FinalGrade
	Missing pq.StringArray `db:"missing"`
}

func (r gradeRow) toFinalGrade() grade.FinalGrade {
	fg := r.FinalGrade
	fg.Missing = append(make([]string, 0, len(r.Missing)), r.Missing...)
	fg.ComputedAt = fg.ComputedAt.UTC()
	return fg
}

type gradeRepository struct {
	base
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{base{db: db}}
}

func (repo *gradeRepository) GetFinalGrade(ctx context.Context, key mark.Key, exec ...core.DBExecutor) (grade.FinalGrade, error) {
	var row gradeRow
	q := `SELECT ` + gradeColumns + ` FROM final_grades WHERE student_id = $1 AND unit_id = $2 AND semester_id = $3`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, key.StudentID, key.UnitID, key.SemesterID); err != nil {
		return grade.FinalGrade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding final grade")
	}
	return row.toFinalGrade(), nil
}

func (repo *gradeRepository) GetGeneration(ctx context.Context, key mark.Key, exec ...core.DBExecutor) (int64, error) {
	var gen int64
	q := `SELECT COALESCE((SELECT generation FROM grade_invalidations
		WHERE student_id = $1 AND unit_id = $2 AND semester_id = $3), 0)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &gen, q, key.StudentID, key.UnitID, key.SemesterID); err != nil {
		return 0, errors.Wrap(err, "getting final grade generation")
	}
	return gen, nil
}

// SaveFinalGrade takes the invalidation row lock first: it waits for a mark transaction that is bumping the
// generation to commit, then compares generations in the same statement.
func (repo *gradeRepository) SaveFinalGrade(ctx context.Context, fg grade.FinalGrade, exec ...core.DBExecutor) (grade.FinalGrade, error) {
	q := `WITH inv AS (
			INSERT INTO grade_invalidations (student_id, unit_id, semester_id) VALUES ($1, $2, $3)
			ON CONFLICT (student_id, unit_id, semester_id) DO UPDATE SET generation = grade_invalidations.generation
			RETURNING generation
		)
		INSERT INTO final_grades (` + gradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, (SELECT generation FROM inv) <> $12, $13)
		ON CONFLICT (student_id, unit_id, semester_id) DO UPDATE
		SET scheme_id = EXCLUDED.scheme_id, scheme_version = EXCLUDED.scheme_version, status = EXCLUDED.status,
			total = EXCLUDED.total, grade = EXCLUDED.grade, grade_point = EXCLUDED.grade_point,
			passed = EXCLUDED.passed, missing = EXCLUDED.missing, generation = EXCLUDED.generation,
			stale = EXCLUDED.stale, computed_at = EXCLUDED.computed_at
		RETURNING ` + gradeColumns
	var row gradeRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q,
		fg.StudentID, fg.UnitID, fg.SemesterID, fg.SchemeID, fg.SchemeVersion, fg.Status,
		fg.Total, fg.Grade, fg.GradePoint, fg.Passed, pq.Array(fg.Missing), fg.Generation, fg.ComputedAt.UTC())
	if err != nil {
		return grade.FinalGrade{}, errors.Wrap(err, "saving final grade")
	}
	return row.toFinalGrade(), nil
}

// MarkStale runs inside the mark transaction, so the generation row stays locked until the mark commits.
func (repo *gradeRepository) MarkStale(ctx context.Context, key mark.Key, exec ...core.DBExecutor) error {
	q := `WITH inv AS (
			INSERT INTO grade_invalidations (student_id, unit_id, semester_id, generation) VALUES ($1, $2, $3, 1)
			ON CONFLICT (student_id, unit_id, semester_id) DO UPDATE SET generation = grade_invalidations.generation + 1
		)
		UPDATE final_grades SET stale = true WHERE student_id = $1 AND unit_id = $2 AND semester_id = $3`
	if _, err := repo.getExec(exec).ExecContext(ctx, q, key.StudentID, key.UnitID, key.SemesterID); err != nil {
		return errors.Wrap(err, "marking final grade stale")
	}
	return nil
}

func (repo *gradeRepository) QueryStaleKeys(ctx context.Context, limit int, exec ...core.DBExecutor) ([]mark.Key, error) {
	q := `SELECT student_id, unit_id, semester_id FROM final_grades WHERE stale
		ORDER BY computed_at, student_id, unit_id, semester_id`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	keys := make([]mark.Key, 0)
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &keys, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying stale final grades")
	}
	return keys, nil
}
