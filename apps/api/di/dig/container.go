package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/progression"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/services/metrics"
	"github.com/trezcool/alama/services/notify"
	"github.com/trezcool/alama/services/scheduler"
	"github.com/trezcool/alama/storage/database"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.OpenX(conf)
		if err != nil {
			return nil, err
		}

		version, err := database.Migrate(db.DB)
		if err != nil {
			return nil, err
		}
		loggerParam.Logger.Info("database ready", "schema_version", version)
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newPublisher(acadSvc academic.Service, mailSvc core.EmailService, logger core.Logger, mtr *metrics.Metrics) grade.Publisher {
	return grade.MultiPublisher{
		notify.NewGradeMailer(acadSvc, mailSvc, logger),
		notify.NewAuditLog(logger),
		mtr,
	}
}

func newInvalidator(svc grade.Service) mark.Invalidator {
	return svc
}

func newScheduler(gradeSvc grade.Service, mtr *metrics.Metrics, logger core.Logger, conf *core.Config) (*scheduler.Scheduler, error) {
	return scheduler.New(gradeSvc, mtr, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(metrics.New))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewAcademicRepository))
	must(c.Provide(sqlxrepos.NewSchemeRepository))
	must(c.Provide(sqlxrepos.NewMarkRepository))
	must(c.Provide(sqlxrepos.NewGradeRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(scheme.NewService))
	must(c.Provide(newPublisher))
	must(c.Provide(grade.NewService))
	must(c.Provide(newInvalidator))
	must(c.Provide(mark.NewService))
	must(c.Provide(progression.NewService))
	must(c.Provide(newScheduler))

	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
