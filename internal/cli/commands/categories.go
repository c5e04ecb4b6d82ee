package commands

import (
	"github.com/spf13/cobra"
)

// CategoriesOutput is the JSON/YAML shape of pasture categories.
type CategoriesOutput struct {
	Dataset    string    `json:"dataset" yaml:"dataset"`
	AboveMax   string    `json:"above_max" yaml:"above_max"`
	Min        float64   `json:"min" yaml:"min"`
	Max        float64   `json:"max" yaml:"max"`
	Categories []float64 `json:"categories" yaml:"categories"`
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cats"},
		Short:   "List the stocking-rate categories in the dataset",
		Long: `List the distinct stocking rates present in the GRASP dataset, in
ascending order. A requested stocking rate resolves to the smallest
category that is greater than or equal to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			idx := cc.Dataset.Categories()
			out := CategoriesOutput{
				Dataset:    cc.Dataset.Path(),
				AboveMax:   idx.Policy().String(),
				Categories: idx.Values(),
			}
			out.Min, _ = idx.Min()
			out.Max, _ = idx.Max()

			rows := make([][]any, len(out.Categories))
			for i, v := range out.Categories {
				rows[i] = []any{i + 1, v}
			}
			return emit(cc.Renderer, out, []string{"#", "Stocking rate"}, rows)
		},
	}
}
