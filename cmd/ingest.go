package cmd

import (
	"fmt"

	"momo/ingest"
	"momo/logger"

	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "从 JSON 或 CSV 文件批量导入原始交易记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			records, err := ingest.LoadFile(args[0])
			if err != nil {
				return err
			}

			log := logger.New(cmd.ErrOrStderr(), cfg.Server.LogFormat, cfg.Server.LogLevel)
			p := ingest.New(db,
				ingest.WithTimestampLayout(cfg.Ingest.TimestampLayout),
				ingest.WithLogger(log))
			out := p.IngestBatch(cmd.Context(), records)

			w := cmd.OutOrStdout()
			for _, res := range out.Results {
				if res.Outcome == ingest.Rejected || verbose {
					fmt.Fprintf(w, "  %-20s %-18s %s %s\n", res.Ref, res.Outcome, res.Reason, res.Detail)
				}
			}
			fmt.Fprintf(w, "共 %d 条：新增 %d，重复 %d，拒绝 %d\n",
				len(records), out.Created, out.Skipped, out.Rejected)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出每条记录的结果")
	return cmd
}
