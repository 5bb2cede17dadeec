package cmd

import (
	"fmt"
	"strings"

	"momo/access"
	"momo/config"
	"momo/ingest"
	"momo/logger"
	"momo/lookup"
	"momo/router"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			// 命令行参数覆盖端口配置
			if port != "" {
				if !strings.HasPrefix(port, ":") {
					port = ":" + port
				}
				cfg.Server.Port = port
			}
			config.PrintConfig()

			if len(cfg.Auth.Clients) == 0 {
				return fmt.Errorf("未配置任何客户端凭证（auth.clients 或 MOMO_API_TOKEN）")
			}
			strategy, err := lookup.ParseStrategy(cfg.Lookup.Strategy)
			if err != nil {
				return err
			}

			log := logger.New(cmd.ErrOrStderr(), cfg.Server.LogFormat, cfg.Server.LogLevel)
			pipeline := ingest.New(db,
				ingest.WithTimestampLayout(cfg.Ingest.TimestampLayout),
				ingest.WithLogger(log.With().Str("component", "ingest").Logger()))
			svc := access.New(db, access.NewAuthenticator(cfg.Auth.Clients),
				access.WithStrategy(strategy),
				access.WithPipeline(pipeline),
				access.WithLogger(log.With().Str("component", "access").Logger()))

			r := router.SetupRouter(cfg, svc, log.With().Str("component", "http").Logger())

			log.Info().
				Str("addr", cfg.Server.Port).
				Str("strategy", strategy.Name()).
				Msgf("服务已启动，Swagger: http://localhost%s/swagger/index.html", cfg.Server.Port)
			return r.Run(cfg.Server.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "监听端口，如: 8000 或 :8000")
	return cmd
}
