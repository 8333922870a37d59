package notify_test

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/services/notify"
	"github.com/trezcool/alama/tests"
)

func finalGrade(std academic.Student, unit academic.Unit, total float64, letter string, passed bool) grade.FinalGrade {
	return grade.FinalGrade{
		StudentID:     std.ID,
		UnitID:        unit.ID,
		SemesterID:    "sem",
		SchemeVersion: 1,
		Status:        grade.StatusComplete,
		Total:         null.Float64From(total),
		Grade:         null.StringFrom(letter),
		Passed:        passed,
	}
}

func TestGradeMailer_Publish(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()
	core.ParseEmailTemplates(env.Logger)

	mailSvc := emailsvc.NewConsoleServiceMock(env.Logger, env.Conf)
	mailer := notify.NewGradeMailer(env.AcadSvc, mailSvc, env.Logger)

	mailer.Publish(ctx, finalGrade(f.Student, f.Unit1, 84, "A", true))
	mailer.Wait()
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, f.Student.Email, msg.To[0].Address)
	assert.Equal(t, f.Student.Name, msg.To[0].Name)
	assert.Equal(t, "Final grade for CS101", msg.Subject)
	assert.Contains(t, msg.TextContent, "Hello "+f.Student.Name)
	assert.Contains(t, msg.TextContent, "Your final grade for CS101 (Unit CS101) is now available: A (84.00%).")
	assert.Contains(t, msg.TextContent, "Congratulations")
	assert.NotEmpty(t, msg.HTMLContent)

	mailSvc.Reset()
	mailer.Publish(ctx, finalGrade(f.Student, f.Unit2, 35.5, "E", false))
	mailer.Wait()
	sent = mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "E (35.50%)")
	assert.Contains(t, sent[0].TextContent, "retaken")

	// students without an address are skipped
	mailSvc.Reset()
	_, err := env.AcadRepo.CreateStudent(ctx, academic.Student{
		ID:                 "no-email",
		RegistrationNumber: "CS/003/2024",
		Name:               "Anonymous",
		ProgrammeID:        f.Programme.ID,
		CurrentYear:        1,
		IsActive:           true,
	})
	require.NoError(t, err)
	mailer.Publish(ctx, grade.FinalGrade{StudentID: "no-email", UnitID: f.Unit1.ID, Status: grade.StatusComplete})
	mailer.Wait()
	assert.Empty(t, mailSvc.SentMessages())

	// lookup failures are logged, not sent
	mailer.Publish(ctx, grade.FinalGrade{StudentID: f.Student.ID, UnitID: "lol", Status: grade.StatusComplete})
	mailer.Publish(ctx, grade.FinalGrade{StudentID: "lol", UnitID: f.Unit1.ID, Status: grade.StatusComplete})
	mailer.Wait()
	assert.Empty(t, mailSvc.SentMessages())
}

// blockingAcademic holds student lookups until released.
type blockingAcademic struct {
	academic.Service
	release chan struct{}
}

func (b *blockingAcademic) GetStudent(ctx context.Context, id string) (academic.Student, error) {
	<-b.release
	return b.Service.GetStudent(ctx, id)
}

func TestGradeMailer_Publish_background(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	core.ParseEmailTemplates(env.Logger)

	mailSvc := emailsvc.NewConsoleServiceMock(env.Logger, env.Conf)
	acadSvc := &blockingAcademic{Service: env.AcadSvc, release: make(chan struct{})}
	mailer := notify.NewGradeMailer(acadSvc, mailSvc, env.Logger)

	// the request is over by the time the lookups run
	ctx, cancel := context.WithCancel(context.Background())
	mailer.Publish(ctx, finalGrade(f.Student, f.Unit1, 84, "A", true))
	cancel()
	assert.Empty(t, mailSvc.SentMessages())

	close(acadSvc.release)
	mailer.Wait()
	require.Len(t, mailSvc.SentMessages(), 1)
	assert.Equal(t, f.Student.Email, mailSvc.SentMessages()[0].To[0].Address)
}

func TestAuditLog_Publish(t *testing.T) {
	conf := testutil.NewTestConfig()
	var buf bytes.Buffer
	logger := logsvc.NewRollbarLogger(log.New(&buf, "", 0), conf)
	logger.Enable(false)

	fg := grade.FinalGrade{
		StudentID:     "std",
		UnitID:        "unit",
		SemesterID:    "sem",
		SchemeVersion: 2,
		Status:        grade.StatusComplete,
		Total:         null.Float64From(84.5),
		Grade:         null.StringFrom("A"),
		Passed:        true,
	}
	notify.NewAuditLog(logger).Publish(context.Background(), fg)
	assert.Equal(t,
		"grade finalized: student=std unit=unit semester=sem scheme=v2 total=84.50 grade=A passed=true\n",
		buf.String(),
	)
}

func TestPublishers_fanOut(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	mailSvc := emailsvc.NewConsoleServiceMock(env.Logger, env.Conf)
	recorder := new(testutil.Publisher)
	mailer := notify.NewGradeMailer(env.AcadSvc, mailSvc, env.Logger)
	pub := grade.MultiPublisher{notify.NewAuditLog(env.Logger), mailer, recorder}

	gradeSvc := grade.NewService(env.GradeRepo, env.MarkRepo, env.AcadSvc, env.SchemeSvc, pub, env.Logger, env.Conf)
	f.Grade(t, env, f.Unit1, 8, 18, 50)
	fg, err := gradeSvc.Refresh(ctx, f.Key(f.Unit1))
	require.NoError(t, err)

	assert.Equal(t, []grade.FinalGrade{fg}, recorder.Published())
	mailer.Wait()
	require.Len(t, mailSvc.SentMessages(), 1)
	assert.Equal(t, "Final grade for CS101", mailSvc.SentMessages()[0].Subject)
}
