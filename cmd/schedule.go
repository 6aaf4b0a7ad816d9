package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview per-layer retention budgets",
		RunE:  scheduleHandler,
	}

	addConfigFlags(cmd)
	cmd.Flags().Int("q-len", 0, "Prefill sequence length")
	cmd.Flags().Int("capacity-override", 0, "Replace the configured capacity for this preview")
	cmd.MarkFlagRequired("q-len")

	return cmd
}

func scheduleHandler(cmd *cobra.Command, args []string) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	qLen, _ := cmd.Flags().GetInt("q-len")
	override, _ := cmd.Flags().GetInt("capacity-override")

	plan := config.Plan(qLen, override)

	fmt.Printf("regime: %s (q_len %d, capacity %d)\n\n", plan.Regime, plan.QLen, plan.Capacity)

	var data [][]string
	for _, layer := range plan.Layers {
		data = append(data, []string{
			strconv.Itoa(layer.Layer),
			strconv.Itoa(layer.Budget),
			strconv.Itoa(layer.Retained),
			fmt.Sprintf("%.1f%%", 100*float64(layer.Retained)/float64(max(plan.QLen, 1))),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"LAYER", "BUDGET", "RETAINED", "OF PROMPT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
