package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	conf     *core.Config
	usrRepo  user.Repository
	usrSvc   user.Service
	acadSvc  academic.Service
	markSvc  mark.Service
	gradeSvc grade.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run goose migration commands (up, down, status, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - add or update a user; the password will be prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  seed -file CATALOG.yaml - import programmes, units, years, students, enrollments and allocations")
	fmt.Println("  importmarks -file MARKS.csv -grader USERNAME|EMAIL - record marks in bulk")
	fmt.Println("  lock -unit CODE -semester ID -admin USERNAME|EMAIL - lock a unit's marks for a semester")
	fmt.Println("  unlock -unit CODE -semester ID -admin USERNAME|EMAIL - unlock a unit's marks for a semester")
	fmt.Println("  recompute [-batch N] - recompute stale final grades")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "Path to the YAML catalog.")

	importMarksCmd := flag.NewFlagSet("importmarks", flag.ContinueOnError)
	importMarksFile := importMarksCmd.String("file", "", "Path to the CSV file.")
	importMarksGrader := importMarksCmd.String("grader", "", "Username or email of the user recording the marks.")

	lockCmd := flag.NewFlagSet("lock", flag.ContinueOnError)
	lockUnit := lockCmd.String("unit", "", "The unit code.")
	lockSemester := lockCmd.String("semester", "", "The semester ID.")
	lockAdmin := lockCmd.String("admin", "", "Username or email of the administrator.")

	unlockCmd := flag.NewFlagSet("unlock", flag.ContinueOnError)
	unlockUnit := unlockCmd.String("unit", "", "The unit code.")
	unlockSemester := unlockCmd.String("semester", "", "The semester ID.")
	unlockAdmin := unlockCmd.String("admin", "", "Username or email of the administrator.")

	recomputeCmd := flag.NewFlagSet("recompute", flag.ContinueOnError)
	recomputeBatch := recomputeCmd.Int("batch", 0, "Maximum number of grades to recompute (0 uses the configured batch size).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedFile)

	case "importmarks":
		if err := importMarksCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importMarksFile == "" || *importMarksGrader == "" {
			importMarksCmd.Usage()
			return errHelp
		}
		return cli.importMarks(*importMarksFile, *importMarksGrader)

	case "lock":
		if err := lockCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *lockUnit == "" || *lockSemester == "" || *lockAdmin == "" {
			lockCmd.Usage()
			return errHelp
		}
		return cli.lock(*lockUnit, *lockSemester, *lockAdmin)

	case "unlock":
		if err := unlockCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unlockUnit == "" || *unlockSemester == "" || *unlockAdmin == "" {
			unlockCmd.Usage()
			return errHelp
		}
		return cli.unlock(*unlockUnit, *unlockSemester, *unlockAdmin)

	case "recompute":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.recompute(*recomputeBatch)

	default:
		cli.printUsage()
		return errHelp
	}
}
