package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"momo/access"
	"momo/service"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "审计日志工具",
	}
	cmd.AddCommand(auditExportCmd())
	return cmd
}

func auditExportCmd() *cobra.Command {
	var (
		out    string
		since  string
		until  string
		status string
		action string
		mail   bool
		to     []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出审计日志与交易为 Excel，可选发送邮件",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := access.Filter{Status: status, Action: action}
			var err error
			if filter.Since, err = parseDateFlag("since", since); err != nil {
				return err
			}
			if filter.Until, err = parseDateFlag("until", until); err != nil {
				return err
			}

			cfg, db, err := setup()
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			summary, err := service.NewReportService(db).WriteReport(cmd.Context(), &buf, filter)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("audit_%s.xlsx", summary.GeneratedAt.Format("20060102_150405"))
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "已导出 %s：审计记录 %d 条，交易 %d 条\n", out, summary.AuditEntries, summary.Transactions)

			if mail {
				email := service.NewEmailService(&cfg.Email)
				if err := email.SendReport(to, filepath.Base(out), summary, buf.Bytes()); err != nil {
					return err
				}
				fmt.Fprintln(w, "报表邮件已发送")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件（默认 audit_<时间>.xlsx）")
	cmd.Flags().StringVar(&since, "since", "", "开始日期 YYYY-MM-DD（含）")
	cmd.Flags().StringVar(&until, "until", "", "结束日期 YYYY-MM-DD（不含）")
	cmd.Flags().StringVar(&status, "status", "", "按结果状态过滤，如 unauthorized")
	cmd.Flags().StringVar(&action, "action", "", "按动作过滤，如 delete")
	cmd.Flags().BoolVar(&mail, "mail", false, "导出后以附件发送邮件")
	cmd.Flags().StringSliceVar(&to, "to", nil, "收件人（默认取配置 email.to）")
	return cmd
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("--%s 日期格式错误: %w", name, err)
	}
	return &t, nil
}
