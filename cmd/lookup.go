package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"momo/lookup"

	"github.com/spf13/cobra"
)

func lookupCmd() *cobra.Command {
	var (
		ref      string
		id       uint
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "按流水号或主键查找交易",
		Long: `按流水号或主键查找交易。--strategy all 时依次使用三种策略并校验结果一致。

Examples:
  momo lookup --ref TXN1001
  momo lookup --id 42 --strategy binary
  momo lookup --ref TXN1001 --strategy all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key lookup.Key
			switch {
			case ref != "" && id != 0:
				return errors.New("--ref 与 --id 只能指定一个")
			case ref != "":
				key = lookup.ByRef(ref)
			case id != 0:
				key = lookup.ByID(id)
			default:
				return errors.New("需要 --ref 或 --id")
			}

			strategies := lookup.Strategies()
			if strategy != "all" {
				s, err := lookup.ParseStrategy(strategy)
				if err != nil {
					return err
				}
				strategies = []lookup.Strategy{s}
			}

			_, db, err := setup()
			if err != nil {
				return err
			}
			seq, err := lookup.NewEngine(db, nil).Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var first []byte
			for _, s := range strategies {
				tx, err := lookup.FindIn(seq, key, s)
				if err != nil {
					return fmt.Errorf("%s: %w", s.Name(), err)
				}
				b, err := json.MarshalIndent(tx, "", "  ")
				if err != nil {
					return err
				}
				if first == nil {
					first = b
					fmt.Fprintln(w, string(b))
				} else if string(b) != string(first) {
					return fmt.Errorf("策略 %s 的结果与 %s 不一致", s.Name(), strategies[0].Name())
				}
			}
			if len(strategies) > 1 {
				fmt.Fprintf(w, "%d 种策略结果一致\n", len(strategies))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "交易流水号")
	cmd.Flags().UintVar(&id, "id", 0, "交易主键")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "hashed", "查找策略 linear / binary / hashed / all")
	return cmd
}
