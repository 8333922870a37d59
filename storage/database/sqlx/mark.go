package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/mark"
)

const markColumns = `id, student_id, unit_id, semester_id, component_id, score, remarks, entered_by, created_at, updated_at`

type markRepository struct {
	base
}

var _ mark.Repository = (*markRepository)(nil)

func NewMarkRepository(db *sqlx.DB) mark.Repository {
	return &markRepository{base{db: db}}
}

// UpsertMark writes nothing when the unit is locked: the lock check and the write are a single statement.
func (repo *markRepository) UpsertMark(ctx context.Context, m mark.Mark, exec ...core.DBExecutor) (mark.Mark, error) {
	q := `INSERT INTO student_marks (` + markColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		WHERE NOT EXISTS (SELECT 1 FROM mark_locks WHERE unit_id = $3 AND semester_id = $4)
		ON CONFLICT (student_id, unit_id, semester_id, component_id) DO UPDATE
		SET score = EXCLUDED.score, remarks = EXCLUDED.remarks,
			entered_by = EXCLUDED.entered_by, updated_at = EXCLUDED.updated_at
		RETURNING ` + markColumns
	var saved mark.Mark
	err := sqlx.GetContext(ctx, repo.getExec(exec), &saved, q,
		m.ID, m.StudentID, m.UnitID, m.SemesterID, m.ComponentID, m.Score, m.Remarks, m.EnteredBy,
		m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		return mark.Mark{}, trapNoRowsErr(err, &core.LockedError{UnitID: m.UnitID, SemesterID: m.SemesterID}, "upserting mark")
	}
	return saved, nil
}

func (repo *markRepository) QueryMarks(ctx context.Context, key mark.Key, exec ...core.DBExecutor) ([]mark.Mark, error) {
	q := `SELECT ` + markColumns + ` FROM student_marks
		WHERE ($1 = '' OR student_id = $1) AND ($2 = '' OR unit_id = $2) AND ($3 = '' OR semester_id = $3)
		ORDER BY created_at, id`
	marks := make([]mark.Mark, 0)
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &marks, q, key.StudentID, key.UnitID, key.SemesterID); err != nil {
		return nil, errors.Wrap(err, "querying marks")
	}
	return marks, nil
}

func (repo *markRepository) GetLock(ctx context.Context, unitID, semesterID string, exec ...core.DBExecutor) (mark.Lock, error) {
	var lock mark.Lock
	q := `SELECT unit_id, semester_id, locked_by, locked_at FROM mark_locks WHERE unit_id = $1 AND semester_id = $2`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &lock, q, unitID, semesterID); err != nil {
		return mark.Lock{}, trapNoRowsErr(err, mark.ErrLockNotFound, "finding mark lock")
	}
	return lock, nil
}

func (repo *markRepository) CreateLock(ctx context.Context, lock mark.Lock, exec ...core.DBExecutor) (mark.Lock, error) {
	q := `INSERT INTO mark_locks (unit_id, semester_id, locked_by, locked_at)
		VALUES (:unit_id, :semester_id, :locked_by, :locked_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, lock); err != nil {
		if isUniqueViolation(err) {
			return mark.Lock{}, mark.ErrAlreadyLocked
		}
		return mark.Lock{}, errors.Wrap(err, "inserting mark lock")
	}
	return lock, nil
}

func (repo *markRepository) DeleteLock(ctx context.Context, unitID, semesterID string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM mark_locks WHERE unit_id = $1 AND semester_id = $2`, unitID, semesterID)
	if err != nil {
		return errors.Wrap(err, "deleting mark lock")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mark.ErrLockNotFound
	}
	return nil
}
