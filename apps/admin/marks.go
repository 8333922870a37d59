package main

import (
	"context"
	"fmt"
	"os"
)

func (cli *commandLine) importMarks(path, graderName string) error {
	ctx := context.Background()
	grader, err := cli.usrSvc.GetByUsernameOrEmail(ctx, graderName)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := cli.markSvc.Import(ctx, grader, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "recorded: %d, failed: %d\n", report.Recorded, len(report.Failed))
	for _, re := range report.Failed {
		fmt.Fprintf(cli.out, "  row %d: %s\n", re.Row, re.Error)
	}
	return nil
}

func (cli *commandLine) lock(unitCode, semesterID, adminName string) error {
	ctx := context.Background()
	admin, err := cli.usrSvc.GetByUsernameOrEmail(ctx, adminName)
	if err != nil {
		return err
	}
	unit, err := cli.acadSvc.GetUnitByCode(ctx, unitCode)
	if err != nil {
		return err
	}
	lck, err := cli.markSvc.Lock(ctx, admin, unit.ID, semesterID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s locked for semester %s at %s\n", unit.Code, lck.SemesterID, lck.LockedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (cli *commandLine) unlock(unitCode, semesterID, adminName string) error {
	ctx := context.Background()
	admin, err := cli.usrSvc.GetByUsernameOrEmail(ctx, adminName)
	if err != nil {
		return err
	}
	unit, err := cli.acadSvc.GetUnitByCode(ctx, unitCode)
	if err != nil {
		return err
	}
	if err = cli.markSvc.Unlock(ctx, admin, unit.ID, semesterID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s unlocked for semester %s\n", unit.Code, semesterID)
	return nil
}

func (cli *commandLine) recompute(batch int) error {
	if batch <= 0 {
		batch = cli.conf.Grading.RecomputeBatchSize
	}
	n, err := cli.gradeSvc.RecomputeStale(context.Background(), batch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "recomputed: %d\n", n)
	return nil
}
