package main

import (
	"fmt"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/types"
)

func newCostsCmd(v *viper.Viper) *cobra.Command {
	var csv bool

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Print the instruction weights of the cost model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := gas.NewRules(types.CostModelVersion(v.GetString(keyCostModel)))
			if err != nil {
				return err
			}
			t := costsTable(rules)
			t.SetOutputMirror(cmd.OutOrStdout())
			if csv {
				t.RenderCSV()
			} else {
				t.Render()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&csv, "csv", false, "Print CSV instead of a table.")
	return cmd
}

func costsTable(rules *gas.Schedule) table.Writer {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("cost model %s", rules.Version()))
	t.AppendHeader(table.Row{"Opcode", "Instruction", "Cost"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Cost", Align: text.AlignRight},
	})
	for _, w := range rules.Weights() {
		cost := strconv.FormatUint(uint64(w.Cost), 10)
		if w.PerTarget {
			cost += " + targets"
		}
		t.AppendRow(table.Row{fmt.Sprintf("0x%04x", uint16(w.Opcode)), w.Opcode.String(), cost})
	}
	t.AppendFooter(table.Row{"", "memory.grow per page", fmt.Sprintf("%d per %s page", rules.MemoryGrowCost(), types.PageSize.HR())})
	t.AppendFooter(table.Row{"", "per local at call", rules.CallPerLocalCost()})
	t.AppendFooter(table.Row{"", "max gas", fmt.Sprintf("%d (%d pages, %s)", types.MaxGas, types.MaxPages, (datasize.ByteSize(types.MaxPages) * types.PageSize).HR())})
	return t
}
