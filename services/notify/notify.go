package notify

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
)

const (
	gradeFinalizedTemplate = "grade_finalized"

	// lookupTimeout bounds the student & unit lookups of one notification.
	lookupTimeout = 30 * time.Second
)

// GradeFinalizedData feeds the grade_finalized e-mail templates.
type GradeFinalizedData struct {
	StudentName string
	UnitCode    string
	UnitName    string
	Grade       string
	Total       string
	Passed      bool
}

// GradeMailer e-mails students when one of their final grades is finalized.
// Notifications are prepared and sent in the background.
type GradeMailer struct {
	acadSvc academic.Service
	mailSvc core.EmailService
	logger  core.Logger
	wg      sync.WaitGroup
}

var _ grade.Publisher = (*GradeMailer)(nil)

func NewGradeMailer(acadSvc academic.Service, mailSvc core.EmailService, logger core.Logger) *GradeMailer {
	return &GradeMailer{acadSvc: acadSvc, mailSvc: mailSvc, logger: logger}
}

// Publish returns at once. The request context is not used, since the notification outlives the request.
func (gm *GradeMailer) Publish(_ context.Context, fg grade.FinalGrade) {
	gm.wg.Add(1)
	go func() {
		defer gm.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		msg, err := gm.message(ctx, fg)
		if err != nil {
			gm.logger.Error(fmt.Sprintf("preparing grade notification %s: %v", fg.Key(), err), err)
			return
		}
		if msg != nil {
			gm.mailSvc.SendMessages(msg)
		}
	}()
}

// Wait blocks until every published notification has been handed to the mail service.
func (gm *GradeMailer) Wait() {
	gm.wg.Wait()
}

// message returns nil when the student has no e-mail address.
func (gm *GradeMailer) message(ctx context.Context, fg grade.FinalGrade) (*core.EmailMessage, error) {
	std, err := gm.acadSvc.GetStudent(ctx, fg.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	if std.Email == "" {
		return nil, nil
	}
	unit, err := gm.acadSvc.GetUnit(ctx, fg.UnitID)
	if err != nil {
		return nil, errors.Wrap(err, "getting unit")
	}

	return &core.EmailMessage{
		To:           []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject:      fmt.Sprintf("Final grade for %s", unit.Code),
		TemplateName: gradeFinalizedTemplate,
		TemplateData: GradeFinalizedData{
			StudentName: std.Name,
			UnitCode:    unit.Code,
			UnitName:    unit.Name,
			Grade:       fg.Grade.String,
			Total:       fmt.Sprintf("%.2f", fg.Total.Float64),
			Passed:      fg.Passed,
		},
	}, nil
}

// AuditLog writes one log line per finalized grade.
type AuditLog struct {
	logger core.Logger
}

var _ grade.Publisher = (*AuditLog)(nil)

func NewAuditLog(logger core.Logger) *AuditLog {
	return &AuditLog{logger: logger}
}

func (al *AuditLog) Publish(_ context.Context, fg grade.FinalGrade) {
	al.logger.Info(fmt.Sprintf(
		"grade finalized: student=%s unit=%s semester=%s scheme=v%d total=%.2f grade=%s passed=%t",
		fg.StudentID, fg.UnitID, fg.SemesterID, fg.SchemeVersion, fg.Total.Float64, fg.Grade.String, fg.Passed,
	))
}
