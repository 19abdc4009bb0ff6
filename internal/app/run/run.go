package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/causematch/internal/board"
	"github.com/John-Robertt/causematch/internal/causelist"
	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/export"
	"github.com/John-Robertt/causematch/internal/infra/cache"
	"github.com/John-Robertt/causematch/internal/infra/fsx"
	"github.com/John-Robertt/causematch/internal/infra/httpx"
	"github.com/John-Robertt/causematch/internal/match"
	"github.com/John-Robertt/causematch/internal/scan"
	"github.com/John-Robertt/causematch/internal/source"
	"github.com/John-Robertt/causematch/internal/source/pdftext"
	"github.com/John-Robertt/causematch/internal/source/workbook"
)

// sourceWorkers 是并发读取 cause list 来源（PDF 解析 / board 下载）的 worker 数。
const sourceWorkers = 4

// Deps 是运行时可注入的协作者；零值可用。
type Deps struct {
	// Log 为空时不打日志。
	Log *zap.Logger
	// HTTP 为空时按 eff.ProxyURL 构造（仅在需要 board 时）。
	HTTP *http.Client
	// Observer 为空时不发事件。
	Observer Observer
}

func (d Deps) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Extraction 是 cause list 阶段的结果。
type Extraction struct {
	Cases []domain.CaseID
	// Texts 是每个成功来源的文本（按来源顺序，未做规范化）。每个来源单独提取，
	// 一个文档里不配对的 "(" 不会吞掉下一个文档的内容。
	Texts   []string
	Sources []domain.SourceResult
}

// Result 是一次完整运行的结果：对外稳定的 RunReport + 原始匹配行（供 CSV/HTML 渲染）。
type Result struct {
	Report  domain.RunReport
	Matches []domain.MatchResult
}

// ExtractOptions 由有效配置推导出提取规则。
func ExtractOptions(eff config.EffectiveConfig) causelist.Options {
	return causelist.Options{
		StripBrackets: !eff.KeepBrackets,
		DropArising:   !eff.KeepArising,
	}
}

// Execute 执行一次 run，并返回 RunReport。
// 单个资源失败只记录在 report.sources 中，不影响其他资源。
func Execute(ctx context.Context, eff config.EffectiveConfig, in Input) Result {
	return ExecuteWith(ctx, eff, in, Deps{})
}

// ExecuteWith 与 Execute 相同，但允许注入 logger / HTTP client / Observer。
func ExecuteWith(ctx context.Context, eff config.EffectiveConfig, in Input, deps Deps) Result {
	started := time.Now().UTC()
	log := deps.log()
	obs := deps.Observer

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	log = log.With(zap.String("run_id", rr.RunID))
	deps.Log = log

	ex := ExtractWith(ctx, eff, in, deps)
	rr.Sources = append(rr.Sources, ex.Sources...)
	rr.Cases = domain.Strings(ex.Cases)

	wbStarted := time.Now()
	sheets, wbNames, wbSources := decodeWorkbooks(in)
	rr.Sources = append(rr.Sources, wbSources...)
	for _, s := range wbSources {
		if s.Status == domain.SourceFailed {
			log.Warn("工作簿读取失败", zap.String("path", s.Path), zap.String("error_code", s.ErrorCode), zap.String("error", s.ErrorMsg))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("workbooks", map[string]any{
			"workbooks": len(wbSources),
			"sheets":    len(sheets),
		}, time.Since(wbStarted))
	}

	matchStarted := time.Now()
	results, outcomes := match.MatchTrace(domain.NewCaseSet(ex.Cases...), sheets)
	skipped := 0
	for i, o := range outcomes {
		sr := sheetResult(wbNames[i], o)
		rr.Sheets = append(rr.Sheets, sr)
		if sr.Status == domain.SheetSkipped {
			skipped++
			log.Warn("跳过工作表",
				zap.String("workbook", sr.Workbook),
				zap.String("sheet", sr.Name),
				zap.String("reason", sr.Reason))
		}
		if obs != nil {
			obs.OnSheetDone(sr)
		}
	}
	for _, m := range results {
		rr.Matches = append(rr.Matches, domain.NewMatchRow(m))
	}
	if obs != nil {
		obs.OnPhaseDone("match", map[string]any{
			"cases":   len(ex.Cases),
			"sheets":  len(sheets),
			"skipped": skipped,
			"matched": len(results),
		}, time.Since(matchStarted))
	}

	if eff.Out != "" {
		exportStarted := time.Now()
		if err := export.WriteCSVFile(eff.Out, results); err != nil {
			msg := fmt.Sprintf("写入 CSV 失败：%v", err)
			if fsx.IsPathTypeConflict(err) {
				msg = fmt.Sprintf("导出路径 %q 已是目录，请改用文件路径", eff.Out)
			}
			rr.Sources = append(rr.Sources, failed(eff.Out, domain.SourceKindExport, domain.ErrCodeIOFailed, msg))
			log.Error("导出失败", zap.String("path", eff.Out), zap.Error(err))
		} else {
			rr.Export = eff.Out
			if obs != nil {
				obs.OnPhaseDone("export", map[string]any{
					"rows": len(results),
					"path": eff.Out,
				}, time.Since(exportStarted))
			}
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Info("运行结束",
		zap.Int("cases", rr.Summary.Cases),
		zap.Int("sheets", rr.Summary.Sheets),
		zap.Int("matched", rr.Summary.Matched),
		zap.Int("sources_failed", rr.Summary.SourcesFailed),
		zap.Duration("elapsed", rr.FinishedAt.Sub(rr.StartedAt)))
	return Result{Report: rr, Matches: results}
}

// Extract 只执行 cause list 阶段：读取全部来源，拼接文本并提取 CASE。
func Extract(ctx context.Context, eff config.EffectiveConfig, in Input) Extraction {
	return ExtractWith(ctx, eff, in, Deps{})
}

// ExtractWith 与 Extract 相同，但允许注入协作者。
func ExtractWith(ctx context.Context, eff config.EffectiveConfig, in Input, deps Deps) Extraction {
	log := deps.log()
	obs := deps.Observer
	if obs != nil {
		obs.OnStart(eff)
	}

	planStarted := time.Now()
	jobs := planSources(ctx, eff, in, deps)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{"sources": len(jobs)}, time.Since(planStarted))
	}

	readStarted := time.Now()
	texts, sources := readSources(ctx, jobs, obs)
	failedN := 0
	for _, s := range sources {
		if s.Status == domain.SourceFailed {
			failedN++
			log.Warn("cause list 读取失败", zap.String("path", s.Path), zap.String("kind", s.Kind),
				zap.String("error_code", s.ErrorCode), zap.String("error", s.ErrorMsg))
		}
	}

	var parts []string
	chars := 0
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
			chars += len(t)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("read", map[string]any{
			"sources": len(sources),
			"failed":  failedN,
			"chars":   chars,
		}, time.Since(readStarted))
	}

	extractStarted := time.Now()
	opt := ExtractOptions(eff)
	set := domain.NewCaseSet()
	for _, t := range parts {
		for id := range causelist.ExtractSetWith(t, opt) {
			set.Add(id)
		}
	}
	cases := set.Sorted()
	if obs != nil {
		obs.OnPhaseDone("extract", map[string]any{"cases": len(cases)}, time.Since(extractStarted))
	}
	log.Debug("cause list 提取完成", zap.Int("sources", len(sources)), zap.Int("cases", len(cases)))

	if sources == nil {
		sources = []domain.SourceResult{}
	}
	return Extraction{Cases: cases, Texts: parts, Sources: sources}
}

// sourceJob 是一个待读取的 cause list 来源。res 预先填好 Path/Kind；
// read 返回的非 DecodeError 错误使用 failCode 作为 error_code。
type sourceJob struct {
	res      domain.SourceResult
	failCode string
	read     func(ctx context.Context) (string, error)
}

func planSources(ctx context.Context, eff config.EffectiveConfig, in Input, deps Deps) []sourceJob {
	var jobs []sourceJob

	for _, d := range in.CaseDocs {
		d := d
		kind := scan.KindOf(d.Name)
		if kind == "" {
			kind = domain.SourceKindText
		}
		jobs = append(jobs, sourceJob{
			res:      domain.SourceResult{Path: d.Name, Kind: kind},
			failCode: domain.ErrCodeIOFailed,
			read: func(context.Context) (string, error) {
				if kind == domain.SourceKindPDF {
					text, err := pdftext.ReadBytes(d.Data)
					return text, withPath(err, d.Name)
				}
				return source.ReadText(bytes.NewReader(d.Data))
			},
		})
	}

	for _, p := range in.CasePaths {
		jobs = append(jobs, pathJobs(p, eff.ExcludeDirs)...)
	}

	if u := strings.TrimSpace(in.BoardURL); u != "" {
		jobs = append(jobs, boardJobs(ctx, eff, u, deps)...)
	}
	return jobs
}

func pathJobs(p string, excludeDirs []string) []sourceJob {
	fi, err := os.Stat(p)
	if err != nil {
		return []sourceJob{errJob(p, domain.SourceKindText, domain.ErrCodeIOFailed, err)}
	}
	if !fi.IsDir() {
		kind := scan.KindOf(p)
		if kind == "" {
			// 显式给出的文件：未知扩展名按纯文本读取。
			kind = domain.SourceKindText
		}
		return []sourceJob{fileJob(p, kind)}
	}

	files, err := scan.CauseLists(p, excludeDirs)
	if err != nil {
		return []sourceJob{errJob(p, domain.SourceKindText, domain.ErrCodeIOFailed, fmt.Errorf("扫描失败：%w", err))}
	}
	jobs := make([]sourceJob, 0, len(files))
	for _, f := range files {
		jobs = append(jobs, fileJob(f.AbsPath, f.Kind))
	}
	return jobs
}

func fileJob(path, kind string) sourceJob {
	return sourceJob{
		res:      domain.SourceResult{Path: path, Kind: kind},
		failCode: domain.ErrCodeIOFailed,
		read: func(context.Context) (string, error) {
			if kind == domain.SourceKindPDF {
				return pdftext.ReadFile(path)
			}
			return source.ReadTextFile(path)
		},
	}
}

// boardJobs 同步抓取 board 页面，再为每个 PDF 链接生成一个下载任务。
// board 页面本身也记录为一个来源（kind=board），便于在 report 中看到抓取失败。
func boardJobs(ctx context.Context, eff config.EffectiveConfig, pageURL string, deps Deps) []sourceJob {
	hc := deps.HTTP
	if hc == nil {
		c, err := httpx.NewClient(eff.ProxyURL)
		if err != nil {
			return []sourceJob{errJob(pageURL, domain.SourceKindBoard, domain.ErrCodeConfigInvalid, fmt.Errorf("proxy.url 无效：%w", err))}
		}
		hc = c
	}
	bc := board.Client{HTTP: hc, Cache: cache.New(eff.CacheDir, eff.CacheReadOnly)}

	links, err := bc.Fetch(ctx, pageURL, board.Options{Keyword: eff.LinkKeyword})
	if err != nil {
		return []sourceJob{errJob(pageURL, domain.SourceKindBoard, domain.ErrCodeFetchFailed, errors.New(humanizeFetchError(err)))}
	}
	deps.log().Info("board 页面已解析", zap.String("url", pageURL), zap.Int("links", len(links)))

	jobs := make([]sourceJob, 0, 1+len(links))
	jobs = append(jobs, sourceJob{
		res:  domain.SourceResult{Path: pageURL, Kind: domain.SourceKindBoard},
		read: func(context.Context) (string, error) { return "", nil },
	})
	for _, l := range links {
		l := l
		jobs = append(jobs, sourceJob{
			res:      domain.SourceResult{Path: l.URL, Kind: domain.SourceKindPDF},
			failCode: domain.ErrCodeFetchFailed,
			read: func(ctx context.Context) (string, error) {
				b, err := bc.Download(ctx, l.URL)
				if err != nil {
					return "", errors.New(humanizeFetchError(err))
				}
				text, err := pdftext.ReadBytes(b)
				return text, withPath(err, l.URL)
			},
		})
	}
	return jobs
}

// withPath 为没有路径信息的 DecodeError 补上来源名。
func withPath(err error, path string) error {
	var de *source.DecodeError
	if errors.As(err, &de) && de.Path == "" {
		de.Path = path
	}
	return err
}

func errJob(path, kind, code string, err error) sourceJob {
	return sourceJob{
		res:      domain.SourceResult{Path: path, Kind: kind},
		failCode: code,
		read:     func(context.Context) (string, error) { return "", err },
	}
}

// readSources 用 worker pool 并发读取；输出顺序与 jobs 一致。
func readSources(ctx context.Context, jobs []sourceJob, obs Observer) ([]string, []domain.SourceResult) {
	texts := make([]string, len(jobs))
	results := make([]domain.SourceResult, len(jobs))
	if len(jobs) == 0 {
		return texts, results
	}

	workers := sourceWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	type doneMsg struct {
		idx int
		dur time.Duration
	}
	idxCh := make(chan int)
	doneCh := make(chan doneMsg, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				started := time.Now()
				texts[i], results[i] = runJob(ctx, jobs[i])
				doneCh <- doneMsg{idx: i, dur: time.Since(started)}
			}
		}()
	}
	go func() {
		for i := range jobs {
			idxCh <- i
		}
		close(idxCh)
		wg.Wait()
		close(doneCh)
	}()

	done := 0
	for m := range doneCh {
		done++
		if obs != nil {
			obs.OnSourceDone(done, len(jobs), results[m.idx], m.dur)
		}
	}
	return texts, results
}

func runJob(ctx context.Context, j sourceJob) (string, domain.SourceResult) {
	res := j.res
	if err := ctx.Err(); err != nil {
		return "", withError(res, j.failCode, err)
	}
	text, err := j.read(ctx)
	if err != nil {
		code := j.failCode
		if source.IsDecode(err) {
			code = domain.ErrCodeDecodeFailed
		}
		return "", withError(res, code, err)
	}
	res.Status = domain.SourceOK
	return text, res
}

func withError(res domain.SourceResult, code string, err error) domain.SourceResult {
	if code == "" {
		code = domain.ErrCodeIOFailed
	}
	res.Status = domain.SourceFailed
	res.ErrorCode = code
	res.ErrorMsg = err.Error()
	return res
}

func failed(path, kind, code, msg string) domain.SourceResult {
	return domain.SourceResult{Path: path, Kind: kind, Status: domain.SourceFailed, ErrorCode: code, ErrorMsg: msg}
}

// decodeWorkbooks 顺序解码全部工作簿；wbNames 与 sheets 一一对应。
func decodeWorkbooks(in Input) (sheets []domain.Sheet, wbNames []string, sources []domain.SourceResult) {
	add := func(name, path string, got []domain.Sheet, err error) {
		if err != nil {
			code := domain.ErrCodeIOFailed
			if source.IsDecode(err) {
				code = domain.ErrCodeDecodeFailed
			}
			sources = append(sources, failed(path, domain.SourceKindWorkbook, code, err.Error()))
			return
		}
		sources = append(sources, domain.SourceResult{Path: path, Kind: domain.SourceKindWorkbook, Status: domain.SourceOK})
		for _, sh := range got {
			sheets = append(sheets, sh)
			wbNames = append(wbNames, name)
		}
	}

	for _, d := range in.WorkbookDocs {
		got, err := workbook.Decode(d.Name, bytes.NewReader(d.Data))
		add(d.Name, d.Name, got, err)
	}
	for _, p := range in.WorkbookPaths {
		got, err := workbook.DecodeFile(p)
		add(displayName(p), p, got, err)
	}
	return sheets, wbNames, sources
}

func sheetResult(wb string, o match.SheetOutcome) domain.SheetResult {
	return domain.SheetResult{
		Workbook:   wb,
		Name:       o.Name,
		Status:     o.Status,
		Reason:     o.Reason,
		CaseColumn: o.Columns.CaseNo,
		YearColumn: o.Columns.Year,
		Year:       o.Year,
		YearSource: o.YearSource,
		Rows:       o.Rows,
		Matched:    o.Matched,
	}
}

// humanizeFetchError 把 board 抓取错误转换为可操作的提示。
func humanizeFetchError(err error) string {
	var be *board.BlockedError
	if errors.As(err, &be) {
		return fmt.Sprintf("board 页面被站点拦截（%s）。当前不支持绕过；建议直接上传 cause list PDF，或配置 proxy.url。", be.Reason)
	}

	var nl *board.NoLinkError
	if errors.As(err, &nl) {
		if nl.Keyword != "" {
			return fmt.Sprintf("%v。可以检查 board.link_keyword 是否过严。", nl)
		}
		return nl.Error()
	}

	var hs *board.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("board 返回 HTTP %d（可能触发反爬/限流）。建议稍后重试或配置 proxy.url。", hs.StatusCode)
		case 404:
			return fmt.Sprintf("board 返回 HTTP 404：%s", hs.URL)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("board 返回 HTTP %d（重定向）：%s", hs.StatusCode, loc)
			}
			return fmt.Sprintf("board 返回 HTTP %d：%s", hs.StatusCode, hs.URL)
		}
	}

	if errors.Is(err, httpx.ErrBodyTooLarge) {
		return fmt.Sprintf("响应体过大：%v", err)
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return "board 抓取超时。建议检查网络/代理后重试。"
	}
	return fmt.Sprintf("board 抓取失败：%v", err)
}
