package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned by validate when any problem was found.
var ErrValidationFailed = errors.New("validation failed")

// ValidateOutput is the JSON/YAML shape of pasture validate.
type ValidateOutput struct {
	Dataset    string            `json:"dataset" yaml:"dataset"`
	Adapter    string            `json:"adapter" yaml:"adapter"`
	Table      string            `json:"table" yaml:"table"`
	Valid      bool              `json:"valid" yaml:"valid"`
	Categories int               `json:"categories" yaml:"categories"`
	Problems   []dataset.Problem `json:"problems" yaml:"problems"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the GRASP dataset and configuration",
		Long: `Open the configured GRASP dataset, check that the growth table has every
required column and build the stocking-rate categories.

Every problem is reported, not just the first. The command exits non-zero
when any problem is found.`,
		Example: `  pasture validate --dataset data/grasp.db
  pasture validate -o json`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContextWithoutDataset(cmd)
	cfg := cc.Cfg
	r := cc.Renderer

	out := ValidateOutput{
		Dataset:  cfg.Dataset.Path,
		Adapter:  cfg.Dataset.Adapter,
		Table:    cfg.Dataset.Table,
		Problems: []dataset.Problem{},
	}

	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out.Problems = append(out.Problems, dataset.Problem{Field: "config", Message: line})
			}
		}
	} else {
		clk, err := wallClock(cfg)
		if err != nil {
			return err
		}
		ds, problems, err := openDataset(cmd.Context(), cfg, cc.Logger, datasetOptions{Clock: clk})
		if err != nil {
			return err
		}
		defer func() { _ = ds.Close() }()

		out.Problems = append(out.Problems, problems...)
		if idx := ds.Categories(); idx != nil {
			out.Categories = idx.Len()
		}
	}
	out.Valid = len(out.Problems) == 0

	if structured(r) {
		if err := document(r, out); err != nil {
			return err
		}
	} else {
		r.Header(1, "Dataset validation")
		r.Println(FormatKV(r, "Dataset", out.Dataset))
		r.Println(FormatKV(r, "Adapter", out.Adapter))
		r.Println(FormatKV(r, "Table", out.Table))
		r.Println("")
		for _, p := range out.Problems {
			r.StatusLine(p.Field, "error", p.Message)
		}
		if out.Valid {
			r.Success(fmt.Sprintf("Dataset is valid (%d stocking-rate categories)", out.Categories))
		}
	}

	if !out.Valid {
		return fmt.Errorf("%w: %d problem(s) found", ErrValidationFailed, len(out.Problems))
	}
	return nil
}
