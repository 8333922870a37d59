package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

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

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	validate := validator.New()
	translator := newTranslator()
	txr := sqlxrepos.NewTransactor(db)
	mtr := metrics.New()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	acadSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db), txr, usrSvc, validate)
	schemeSvc := scheme.NewService(sqlxrepos.NewSchemeRepository(db), txr, acadSvc, validate)
	mailer := notify.NewGradeMailer(acadSvc, mailSvc, logger)
	defer mailer.Wait() // flush grade notifications on shutdown
	publisher := grade.MultiPublisher{
		mailer,
		notify.NewAuditLog(logger),
		mtr,
	}
	gradeSvc := grade.NewService(
		sqlxrepos.NewGradeRepository(db), sqlxrepos.NewMarkRepository(db), acadSvc, schemeSvc, publisher, logger, conf,
	)
	markSvc := mark.NewService(sqlxrepos.NewMarkRepository(db), txr, acadSvc, schemeSvc, gradeSvc, validate)
	progressionSvc := progression.NewService(acadSvc, gradeSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	initApp(validate, translator, logger)
	startDebugServer(conf, mtr, logger)

	sched, err := scheduler.New(gradeSvc, mtr, logger, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
	}

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			UserSvc:        usrSvc,
			AcademicSvc:    acadSvc,
			SchemeSvc:      schemeSvc,
			MarkSvc:        markSvc,
			GradeSvc:       gradeSvc,
			ProgressionSvc: progressionSvc,
			Metrics:        mtr,
		},
	)
	serve(server, sched, conf, logger)
}

func setUpDB(conf *core.Config, logger core.Logger) (*sqlx.DB, error) {
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
	logger.Info("database ready", "schema_version", version)
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
