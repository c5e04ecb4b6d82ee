package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pasture/internal/category"
	"github.com/leapstack-labs/pasture/internal/cli/output"
	"github.com/leapstack-labs/pasture/internal/constraint"
	"github.com/leapstack-labs/pasture/pkg/adapter"
)

// Validate checks the dataset and output settings every command relies on.
func (c *Config) Validate() error {
	var errs []error

	if !adapter.IsRegistered(c.Dataset.Adapter) {
		errs = append(errs, fmt.Errorf("unknown adapter type %q\n\nAvailable adapters: %s\n\nCheck your pasture.yaml configuration",
			c.Dataset.Adapter, strings.Join(adapter.ListAdapters(), ", ")))
	}
	if _, err := category.ParsePolicy(c.Dataset.AboveMax); err != nil {
		errs = append(errs, fmt.Errorf("dataset.above_max: %w", err))
	}
	if !output.Valid(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output: unknown format %q", c.OutputFormat))
	}

	for _, v := range constraint.Check(constraint.Map{
		"dataset.query_timeout": c.Dataset.QueryTimeout,
		"site.stk_rate":         c.Site.StkRate,
	},
		constraint.Rule{Field: "dataset.query_timeout", Op: constraint.GreaterThan, Value: 0},
		constraint.Rule{Field: "site.stk_rate", Op: constraint.GreaterOrEqual, Value: 0},
	) {
		errs = append(errs, errors.New(v.String()))
	}

	return errors.Join(errs...)
}

// ValidateSimulation checks the simulated period used by pasture simulate.
func (c *Config) ValidateSimulation() error {
	fields := constraint.Map{"simulation.interval_months": c.Simulation.IntervalMonths}
	if c.Simulation.Start != "" {
		fields["simulation.start"] = c.Simulation.Start
	}
	if c.Simulation.End != "" {
		fields["simulation.end"] = c.Simulation.End
	}

	var errs []error
	for _, v := range constraint.Check(fields,
		constraint.Rule{Field: "simulation.end", Op: constraint.DateAfter, Ref: "simulation.start",
			Message: "end date must be after the start date"},
		constraint.Rule{Field: "simulation.interval_months", Op: constraint.GreaterOrEqual, Value: 1},
	) {
		errs = append(errs, errors.New(v.String()))
	}
	return errors.Join(errs...)
}
