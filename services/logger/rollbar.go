package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

// RollbarLogger prints to a std logger and reports to rollbar.
// Debug entries are only printed when the app runs in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call split into what rollbar and the std logger need.
type entry struct {
	msg    string
	errs   []error
	fields map[string]interface{}
	usr    *user.User
}

// parse accepts, in any order: errors, map[string]interface{} extras, the acting user.User
// and cron-style key/value pairs ("key", value, ...).
func parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(map[string]interface{})}
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case user.User:
			if e.usr == nil { // the first user is the actor
				usr := arg
				e.usr = &usr
			}
		case error:
			e.errs = append(e.errs, arg)
		case map[string]interface{}:
			for k, v := range arg {
				e.fields[k] = v
			}
		case string:
			if i+1 < len(args) {
				e.fields[arg] = args[i+1]
				i++
			} else {
				e.fields[fmt.Sprintf("arg%d", i)] = arg
			}
		default:
			e.fields[fmt.Sprintf("arg%d", i)] = arg
		}
	}
	return e
}

func (e entry) rollbarArgs() []interface{} {
	args := []interface{}{e.msg}
	if len(e.errs) > 0 {
		args = append(args, e.errs[0])
	}
	if len(e.fields) > 0 {
		args = append(args, e.fields)
	}
	return args
}

func (e entry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	if e.usr != nil {
		fmt.Fprintf(&b, " user=%s", e.usr.Username)
	}
	for _, err := range e.errs {
		fmt.Fprintf(&b, "\n%+v", err)
	}
	return b.String()
}

func (l RollbarLogger) log(level, msg string, args []interface{}) entry {
	e := parse(msg, args)
	if e.usr != nil {
		rollbar.SetPerson(e.usr.ID, e.usr.Username, e.usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, e.rollbarArgs()...)
	l.std.Println(e.String())
	return e
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log(rollbar.DEBUG, msg, args)
	}
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(e.msg)
}
