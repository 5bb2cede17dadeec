package cmd

import (
	"encoding/json"

	"momo/lookup"

	"github.com/spf13/cobra"
)

func benchCmd() *cobra.Command {
	var (
		iterations int
		refs       []string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "对比三种查找策略的耗时，并校验结果一致",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			if iterations <= 0 {
				iterations = cfg.Lookup.BenchIterations
			}
			seq, err := lookup.NewEngine(db, nil).Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			targets := lookup.DefaultTargets(seq)
			if len(refs) > 0 {
				targets = targets[:0]
				for _, ref := range refs {
					targets = append(targets, lookup.ByRef(ref))
				}
			}
			report := lookup.Benchmark(seq, targets, iterations)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			report.WriteTable(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "每个目标的查找轮数（默认取配置 lookup.bench_iterations）")
	cmd.Flags().StringSliceVar(&refs, "ref", nil, "查找目标流水号，可重复；默认取末尾、开头、中间和一个不存在的流水号")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}
