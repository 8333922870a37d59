package scheme

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("grading scheme")
	// ErrVersionConflict is returned by repositories when another version was created concurrently.
	ErrVersionConflict = errors.New("a newer version of this scheme was created concurrently")

	// OrderingFields are the fields schemes may be ordered by.
	OrderingFields = []string{"version", "effective_from", "created_at"}
)

type (
	Repository interface {
		// CreateScheme stores the scheme with its components and bands.
		CreateScheme(ctx context.Context, sch Scheme, exec ...core.DBExecutor) (Scheme, error)
		GetScheme(ctx context.Context, id string, exec ...core.DBExecutor) (Scheme, error)
		// GetEffectiveScheme returns the version of the programme with the greatest EffectiveFrom <= at.
		GetEffectiveScheme(ctx context.Context, programmeID string, at time.Time, exec ...core.DBExecutor) (Scheme, error)
		GetLatestScheme(ctx context.Context, programmeID string, exec ...core.DBExecutor) (Scheme, error)
		QuerySchemes(ctx context.Context, programmeID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Scheme, error)
	}

	Service interface {
		// Create appends a new version to the programme's schemes.
		Create(ctx context.Context, creator user.User, ns NewScheme) (Scheme, error)
		// Get returns the scheme effective for the programme at the given date.
		Get(ctx context.Context, programmeID string, at time.Time) (Scheme, error)
		GetByID(ctx context.Context, id string) (Scheme, error)
		Query(ctx context.Context, programmeID string, ordering []core.DBOrdering) ([]Scheme, error)
	}

	service struct {
		repo     Repository
		txr      core.Transactor
		acadSvc  academic.Service
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, txr core.Transactor, acadSvc academic.Service, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		txr:      txr,
		acadSvc:  acadSvc,
		validate: validate,
	}
}

func (svc *service) Create(ctx context.Context, creator user.User, ns NewScheme) (Scheme, error) {
	if !creator.IsAdmin() {
		return Scheme{}, core.ErrPermissionDenied
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Scheme{}, err
	}
	effFrom, err := core.ParseDate(ns.EffectiveFrom)
	if err != nil {
		return Scheme{}, core.NewFieldValidationError("effective_from", err.Error())
	}
	if _, err = svc.acadSvc.GetProgramme(ctx, ns.ProgrammeID); err != nil {
		return Scheme{}, errors.Wrap(err, "getting programme")
	}

	sch := Scheme{
		ID:            uuid.New().String(),
		ProgrammeID:   ns.ProgrammeID,
		Version:       1,
		EffectiveFrom: effFrom,
		CreatedBy:     null.StringFrom(creator.ID),
		CreatedAt:     time.Now().UTC(),
	}
	for i, nc := range ns.Components {
		sch.Components = append(sch.Components, Component{
			ID:       uuid.New().String(),
			SchemeID: sch.ID,
			Name:     nc.Name,
			Type:     nc.Type,
			Weight:   nc.Weight,
			MaxScore: nc.MaxScore,
			Position: i + 1,
		})
	}
	if len(ns.Bands) == 0 {
		sch.Bands = DefaultBands()
	} else {
		for _, nb := range ns.Bands {
			sch.Bands = append(sch.Bands, Band{
				Grade:       nb.Grade,
				MinScore:    nb.MinScore,
				GradePoint:  nb.GradePoint,
				Description: nb.Description,
				Passing:     nb.Passing,
			})
		}
	}
	sortBands(sch.Bands)
	for i := range sch.Bands {
		sch.Bands[i].SchemeID = sch.ID
	}

	err = svc.txr.InTx(ctx, func(exec core.DBExecutor) error {
		latest, err := svc.repo.GetLatestScheme(ctx, sch.ProgrammeID, exec)
		switch {
		case err == nil:
			if !sch.EffectiveFrom.After(latest.EffectiveFrom) {
				return core.NewFieldValidationError("effective_from", fmt.Sprintf(
					"must be after %s, the effective date of version %d",
					latest.EffectiveFrom.Format(core.DateLayout), latest.Version,
				))
			}
			sch.Version = latest.Version + 1
		case errors.Cause(err) != ErrNotFound:
			return errors.Wrap(err, "getting latest scheme")
		}

		sch, err = svc.repo.CreateScheme(ctx, sch, exec)
		return err
	})
	if errors.Cause(err) == ErrVersionConflict {
		return Scheme{}, core.NewFieldValidationError("effective_from", ErrVersionConflict.Error())
	}
	return sch, err
}

func (svc *service) Get(ctx context.Context, programmeID string, at time.Time) (Scheme, error) {
	return svc.repo.GetEffectiveScheme(ctx, programmeID, core.TruncateDate(at))
}

func (svc *service) GetByID(ctx context.Context, id string) (Scheme, error) {
	return svc.repo.GetScheme(ctx, id)
}

func (svc *service) Query(ctx context.Context, programmeID string, ordering []core.DBOrdering) ([]Scheme, error) {
	ordering = core.FilterOrdering(ordering, OrderingFields, core.DBOrdering{Field: "version", Ascending: false})
	return svc.repo.QuerySchemes(ctx, programmeID, ordering)
}
