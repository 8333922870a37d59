package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/alama/core/academic"
)

// seed imports the academic catalog described by a YAML file. Records that already exist are reused.
func (cli *commandLine) seed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var cat academic.Catalog
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&cat); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}

	sum, err := cli.acadSvc.Import(context.Background(), cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(
		cli.out,
		"created: %d units, %d programmes, %d academic years, %d semesters, %d students, %d enrollments, %d allocations\n",
		sum.Units, sum.Programmes, sum.AcademicYears, sum.Semesters, sum.Students, sum.Enrollments, sum.Allocations,
	)
	return nil
}
