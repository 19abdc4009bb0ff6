package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/causematch/internal/app/run"
	"github.com/John-Robertt/causematch/internal/causelist"
	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
)

func (a *app) extractCmd() *cobra.Command {
	var (
		src        sourceFlags
		normalized bool
	)
	cmd := &cobra.Command{
		Use:   "extract [file|dir|-]...",
		Short: "从 cause list 中提取主案件号（每行一个）",
		Long: `从 cause list 中提取主案件号。

输入可以是 PDF / 文本文件、包含它们的目录、"-"（stdin），或 --board 指定的 board 页面。
没有任何输入时读取 stdin。

stdout 是终端时每行输出一个案号；否则输出一个 JSON 数组。

示例：
  causematch extract today.pdf
  pdftotext list.pdf - | causematch extract -
  causematch extract --board https://hc.example.in/causelist --keyword daily`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cli config.CLIArgs
			src.apply(cmd, &cli)
			eff, log, err := a.loadConfig(cmd, cli)
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
			defer func() { _ = log.Sync() }()

			in, err := a.causeListInput(args, eff.BoardURL)
			if err != nil {
				return err
			}

			ex := run.ExtractWith(context.Background(), eff, in, run.Deps{Log: log})
			failed := reportFailedSources(a.stderr, ex.Sources)

			if normalized {
				for _, t := range ex.Texts {
					fmt.Fprintln(a.stdout, causelist.Normalize(t, run.ExtractOptions(eff)))
				}
			} else if err := a.emitCases(ex.Cases); err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
			if failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&normalized, "normalized", false, "输出模式匹配之前的规范化文本（排查漏提取）")
	return cmd
}

// causeListInput 把位置参数转换为 run.Input；"-" 或没有任何来源时读取 stdin。
func (a *app) causeListInput(args []string, boardURL string) (run.Input, error) {
	var in run.Input
	in.BoardURL = boardURL
	useStdin := len(args) == 0 && boardURL == ""
	for _, p := range args {
		if p == "-" {
			useStdin = true
			continue
		}
		in.CasePaths = append(in.CasePaths, p)
	}
	if useStdin {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return run.Input{}, &exitError{code: 1, msg: fmt.Sprintf("读取 stdin 失败：%v", err)}
		}
		in.CaseDocs = append(in.CaseDocs, run.Document{Name: "stdin", Data: b})
	}
	return in, nil
}

func (a *app) emitCases(ids []domain.CaseID) error {
	if isTTY(a.stdout) {
		for _, id := range ids {
			fmt.Fprintln(a.stdout, id)
		}
		return nil
	}
	return json.NewEncoder(a.stdout).Encode(domain.Strings(ids))
}

// reportFailedSources 把失败的来源逐行写到 w，返回失败数。
func reportFailedSources(w io.Writer, sources []domain.SourceResult) int {
	n := 0
	for _, s := range sources {
		if s.Status != domain.SourceFailed {
			continue
		}
		n++
		path := s.Path
		if path == "" {
			path = "<unknown>"
		}
		fmt.Fprintf(w, "%s %s: %s\n", path, s.ErrorCode, s.ErrorMsg)
	}
	return n
}
