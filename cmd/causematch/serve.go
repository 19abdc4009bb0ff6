package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr     string
		proxy    string
		cacheDir string
	)
	cmd := &cobra.Command{
		Use:   "serve [--addr host:port]",
		Short: "启动 web 表单与 JSON API",
		Long: `启动 web 表单与 JSON API：

  GET  /               上传表单
  POST /match          HTML 结果；?format=csv 下载 matched_cases.csv
  POST /api/v1/extract {"text": "..."} -> {"cases": [...]}
  POST /api/v1/match   multipart -> RunReport JSON
  GET  /health
  GET  /metrics        prometheus 指标`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			cli := config.CLIArgs{
				Addr: addr, AddrSet: fl.Changed("addr"),
				ProxyURL: proxy, ProxyURLSet: fl.Changed("proxy"),
				CacheDir: cacheDir, CacheDirSet: fl.Changed("cache-dir"),
			}
			eff, log, err := a.loadConfig(cmd, cli)
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
			defer func() { _ = log.Sync() }()

			srv, err := server.New(eff, log)
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx); err != nil {
				log.Error("http server stopped", zap.Error(err))
				return &exitError{code: 1, msg: err.Error()}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", "", "监听地址（默认 "+config.DefaultAddr+"）")
	fl.StringVar(&proxy, "proxy", "", "board 抓取使用的 HTTP 代理 URL")
	fl.StringVar(&cacheDir, "cache-dir", "", "board 下载缓存目录")
	return cmd
}
