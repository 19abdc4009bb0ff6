package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/causematch/internal/app/run"
	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/infra/fsx"
)

const reportFileName = "report.json"

func (a *app) runCmd() *cobra.Command {
	var (
		src       sourceFlags
		cases     []string
		workbooks []string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "run --cases <file|dir|-> | --board URL --workbook <xlsx|csv>... [--out results.csv]",
		Short: "提取案号并在工作簿中找出对应记录",
		Long: `提取 cause list 中的主案件号，并在工作簿中找出对应记录。

stdout 是终端时输出摘要（进度写 stderr）；否则 stdout 只输出一个 RunReport JSON。
配置了 cache.dir 时，report.json 同时写入该目录。

退出码：0 成功（包括零命中）；1 有输入无法读取/解码；2 参数错误。

示例：
  causematch run --cases today.pdf --workbook records.xlsx
  causematch run --board https://hc.example.in/causelist --workbook a.xlsx --workbook b.csv --out matched_cases.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cli config.CLIArgs
			src.apply(cmd, &cli)
			cli.Out, cli.OutSet = out, cmd.Flags().Changed("out")

			eff, log, err := a.loadConfig(cmd, cli)
			if err != nil {
				a.emitReport(reportForConfigError(err))
				return &exitError{code: 1}
			}
			defer func() { _ = log.Sync() }()

			in, err := a.runInput(cases, eff.BoardURL, workbooks)
			if err != nil {
				return err
			}
			if !in.HasCauseList() {
				return usageErr("%s：需要 --cases 或 --board", domain.ErrCodeNoInput)
			}
			if !in.HasWorkbook() {
				return usageErr("%s：需要至少一个 --workbook", domain.ErrCodeNoInput)
			}

			progressW, interactive := a.pickProgressWriter()
			deps := run.Deps{Log: log}
			if interactive {
				deps.Observer = newProgressUI(progressW)
			}

			res := run.ExecuteWith(context.Background(), eff, in, deps)
			rr := res.Report

			if eff.CacheDir != "" && !eff.CacheReadOnly {
				if err := writeReportFile(eff.CacheDir, rr); err != nil {
					fmt.Fprintf(a.stderr, "写入 report.json 失败：%v\n", err)
					a.emitReport(rr)
					return &exitError{code: 1}
				}
			}

			a.emitReport(rr)
			if interactive {
				emitLocations(progressW, eff, rr)
			}
			if rr.Summary.SourcesFailed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	src.register(cmd)
	fl := cmd.Flags()
	fl.StringArrayVar(&cases, "cases", nil, "cause list：PDF / 文本文件、目录或 -（stdin），可重复")
	fl.StringArrayVar(&workbooks, "workbook", nil, "案件记录工作簿（.xlsx / .xlsm / .csv），可重复")
	fl.StringVar(&out, "out", "", "把命中行导出为 CSV")
	return cmd
}

func (a *app) runInput(cases []string, boardURL string, workbooks []string) (run.Input, error) {
	var in run.Input
	in.BoardURL = boardURL
	in.WorkbookPaths = workbooks
	for _, p := range cases {
		if p != "-" {
			in.CasePaths = append(in.CasePaths, p)
			continue
		}
		if len(in.CaseDocs) > 0 {
			continue
		}
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return run.Input{}, &exitError{code: 1, msg: fmt.Sprintf("读取 stdin 失败：%v", err)}
		}
		in.CaseDocs = append(in.CaseDocs, run.Document{Name: "stdin", Data: b})
	}
	return in, nil
}

func (a *app) emitReport(rr domain.RunReport) {
	s := rr.Summary
	summary := fmt.Sprintf("完成：cases=%d sheets=%d skipped=%d matched=%d sources_failed=%d",
		s.Cases, s.Sheets, s.SheetsSkipped, s.Matched, s.SourcesFailed)

	if isTTY(a.stdout) {
		fmt.Fprintln(a.stdout, summary)
		reportFailedSources(a.stderr, rr.Sources)
		for _, sh := range rr.Sheets {
			if sh.Status == domain.SheetSkipped {
				fmt.Fprintf(a.stderr, "跳过工作表 %s/%s：%s\n", sh.Workbook, sh.Name, sh.Reason)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(a.stdout).Encode(rr)
	fmt.Fprintln(a.stderr, summary)
}

func reportForConfigError(err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  now,
		FinishedAt: now,
		Sources: []domain.SourceResult{{
			Kind:      domain.SourceKindConfig,
			Status:    domain.SourceFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	if rr.Sources[0].ErrorCode == "" {
		rr.Sources[0].ErrorCode = domain.ErrCodeIOFailed
	}
	rr.Finalize()
	return rr
}

func writeReportFile(dir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(dir, reportFileName), b)
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	if w == nil {
		return
	}
	if eff.CacheDir != "" && !eff.CacheReadOnly {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.CacheDir, reportFileName))
	}
	if rr.Export != "" {
		fmt.Fprintf(w, "out: %s\n", rr.Export)
	}
}
