// Package cmd 命令行入口：HTTP 服务、建表、批量导入、查找、基准测试、审计导出、凭证哈希
package cmd

import (
	"fmt"
	"os"

	"momo/config"
	"momo/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version 版本号，构建时可通过 -ldflags 覆盖
var Version = "1.0.0"

var configFile string

// NewRootCommand 构建命令树
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "momo",
		Short:         "MoMo 交易记录：导入、查找与带审计的访问接口",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		ingestCmd(),
		lookupCmd(),
		benchCmd(),
		auditCmd(),
		hashTokenCmd(),
	)
	return root
}

// Execute 运行命令行
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup 加载配置并打开已迁移的数据库
func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := database.Init(cfg); err != nil {
		return nil, nil, fmt.Errorf("数据库初始化失败: %w", err)
	}
	return cfg, database.GetDB(), nil
}
