package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/services/notify"
	"github.com/trezcool/alama/storage/database"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	rl := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rl.Enable(!conf.Debug)
	logger = rl

	// set up DB
	db, err := database.OpenX(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	validate := validator.New()
	txr := sqlxrepos.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	acadSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db), txr, usrSvc, validate)
	schemeSvc := scheme.NewService(sqlxrepos.NewSchemeRepository(db), txr, acadSvc, validate)
	gradeSvc := grade.NewService(
		sqlxrepos.NewGradeRepository(db), sqlxrepos.NewMarkRepository(db), acadSvc, schemeSvc,
		notify.NewAuditLog(logger), logger, conf,
	)
	markSvc := mark.NewService(sqlxrepos.NewMarkRepository(db), txr, acadSvc, schemeSvc, gradeSvc, validate)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		conf:     conf,
		usrRepo:  usrRepo,
		usrSvc:   usrSvc,
		acadSvc:  acadSvc,
		markSvc:  markSvc,
		gradeSvc: gradeSvc,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
