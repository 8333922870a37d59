package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/services/metrics"
	"github.com/trezcool/alama/services/scheduler"
)

// DI selects how dependencies are wired: "manual" (default) or "dig".
func main() {
	switch strings.ToLower(os.Getenv("DI")) {
	case "dig":
		startWithDig()
	default:
		startManual()
	}
}

func initApp(validate *validator.Validate, translator ut.Translator, logger core.Logger) {
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	scheme.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)
}

// startDebugServer serves, on the debug host:
//
// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
// /debug/vars - Added to the default mux by importing the expvar package.
// /metrics - Prometheus exposition of the application registry.
func startDebugServer(conf *core.Config, mtr *metrics.Metrics, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("recomputeSchedule").Set(conf.Grading.RecomputeSchedule)
	http.DefaultServeMux.Handle("/metrics", mtr.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// serve runs the stale grade scheduler and the API until the server fails or a shutdown signal arrives.
func serve(server *echoapi.Server, sched *scheduler.Scheduler, conf *core.Config, logger core.Logger) {
	sched.Start()
	defer func() {
		// let a running recompute batch finish
		<-sched.Stop().Done()
	}()

	go func() {
		server.Start()
	}()

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
