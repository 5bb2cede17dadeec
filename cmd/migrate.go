package cmd

import (
	"fmt"
	"sort"

	"momo/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新表结构并打印各表行数",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			counts, err := database.TableCounts(db)
			if err != nil {
				return err
			}
			tables := make([]string, 0, len(counts))
			for name := range counts {
				tables = append(tables, name)
			}
			sort.Strings(tables)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "表结构已就绪:")
			for _, name := range tables {
				fmt.Fprintf(out, "  %-20s %d\n", name, counts[name])
			}
			return nil
		},
	}
}
