package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/pasture/internal/clock"
	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/leapstack-labs/pasture/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SimulationStep is one interval of a simulation run.
type SimulationStep struct {
	Step        int     `json:"step" yaml:"step"`
	Start       string  `json:"start" yaml:"start"`
	Records     int     `json:"records" yaml:"records"`
	TotalGrowth float64 `json:"total_growth" yaml:"total_growth"`
}

// SimulateOutput is the JSON/YAML shape of pasture simulate.
type SimulateOutput struct {
	RunID          string           `json:"run_id" yaml:"run_id"`
	Site           core.SiteKey     `json:"site" yaml:"site"`
	StkRate        float64          `json:"stk_rate" yaml:"stk_rate"`
	Category       float64          `json:"category" yaml:"category"`
	Start          string           `json:"start" yaml:"start"`
	End            string           `json:"end" yaml:"end"`
	IntervalMonths int              `json:"interval_months" yaml:"interval_months"`
	Steps          []SimulationStep `json:"steps" yaml:"steps"`
	TotalGrowth    float64          `json:"total_growth" yaml:"total_growth"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step through the simulation period fetching growth per interval",
		Long: `Advance a simulation clock from simulation.start to simulation.end in
steps of simulation.interval_months, fetching the growth records for each
interval and reporting the growth totals.

Each request covers one month past the interval, up to the end date.`,
		Example: `  pasture simulate --start 2010-01-01 --end 2015-01-01 --interval 12 --stk-rate 8
  pasture simulate -o json`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	siteFlags(cmd)
	cmd.Flags().String("start", "", "Simulation start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Simulation end date (YYYY-MM-DD)")
	cmd.Flags().Int("interval", 0, "Months per simulation step")

	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg := getConfig()
	if err := cfg.ValidateSimulation(); err != nil {
		return err
	}
	start, err := cfg.Simulation.StartDate()
	if err != nil {
		return err
	}
	end, err := cfg.Simulation.EndDate()
	if err != nil {
		return err
	}

	stepper, err := clock.NewStepper(start, end, cfg.Simulation.IntervalMonths)
	if err != nil {
		return err
	}

	cc, cleanup, err := newCommandContext(cmd, datasetOptions{Clock: stepper})
	if err != nil {
		return err
	}
	defer cleanup()

	cat, err := cc.Dataset.Categories().Resolve(cfg.Site.StkRate)
	if err != nil {
		return err
	}

	out := SimulateOutput{
		RunID:          uuid.NewString(),
		Site:           cfg.Site.Key(),
		StkRate:        cfg.Site.StkRate,
		Category:       cat,
		Start:          start.Format(time.DateOnly),
		End:            end.Format(time.DateOnly),
		IntervalMonths: stepper.StepMonths(),
	}
	logger := cc.Logger.With("run_id", out.RunID)
	logger.Info("simulation started", "start", out.Start, "end", out.End, "interval_months", out.IntervalMonths)

	for {
		today := stepper.Today()
		records, err := cc.Dataset.IntervalRecords(cmd.Context(), dataset.Request{
			Site:    out.Site,
			StkRate: out.StkRate,
			Start:   today,
			Months:  stepper.StepMonths(),
		})
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepper.Steps()+1, today.Format(time.DateOnly), err)
		}

		step := SimulationStep{
			Step:    stepper.Steps() + 1,
			Start:   today.Format(time.DateOnly),
			Records: len(records),
		}
		for _, rec := range records {
			step.TotalGrowth += rec.Growth
		}
		out.Steps = append(out.Steps, step)
		out.TotalGrowth += step.TotalGrowth
		logger.Debug("simulation step", "step", step.Step, "start", step.Start, "records", step.Records)

		if !stepper.Advance() {
			break
		}
	}
	logger.Info("simulation finished", "steps", len(out.Steps))

	r := cc.Renderer
	if structured(r) {
		return document(r, out)
	}

	p := message.NewPrinter(language.English)
	r.Header(1, "Simulation")
	r.Println(FormatKV(r, "Run", out.RunID))
	r.Println(FormatKV(r, "Site", out.Site.String()))
	r.Println(FormatKV(r, "Stocking rate", fmt.Sprintf("%g (category %g)", out.StkRate, out.Category)))
	r.Println(FormatKV(r, "Period", fmt.Sprintf("%s to %s, %d-month steps", out.Start, out.End, out.IntervalMonths)))
	r.Println("")

	rows := make([][]any, len(out.Steps))
	for i, s := range out.Steps {
		rows[i] = []any{s.Step, s.Start, s.Records, p.Sprintf("%.1f", s.TotalGrowth)}
	}
	r.Table([]string{"Step", "Start", "Months", "Total growth"}, rows)
	r.Println("")
	r.Println(FormatKV(r, "Total growth", p.Sprintf("%.1f", out.TotalGrowth)))
	return nil
}
