package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"momo/access"

	"github.com/spf13/cobra"
)

// hashTokenCmd 生成 auth.clients[].token_bcrypt 的配置值，未给参数时从标准输入读取一行
func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "生成客户端凭证的 bcrypt 哈希（token_bcrypt）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("读取凭证失败: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("凭证不能为空")
			}

			hash, err := access.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
