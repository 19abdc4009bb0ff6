package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/logging"
)

var version = "dev"

// exitError 携带进程退出码；消息已由命令自己输出时 msg 为空。
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func usageErr(format string, args ...any) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, args...)}
}

// app 持有一次进程调用的 IO 与全局参数；测试直接构造它，避免依赖全局状态。
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.execute(os.Args[1:]))
}

func (a *app) execute(args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintf(a.stderr, "错误：%s\n", ee.msg)
		}
		return ee.code
	}
	// cobra 自身的参数错误（未知 flag、参数个数）。
	fmt.Fprintf(a.stderr, "参数错误：%v\n", err)
	return 2
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "causematch",
		Short: "从 cause list 中提取 WP 案号，并在工作簿中找出对应记录",
		Long: `causematch 读取法院 cause list（PDF / 文本 / board 页面），提取形如 WP/<number>/<year> 的主案件号，
再与工作簿（xlsx / csv）中的案件记录对齐，输出命中的行。

示例：
  causematch extract today.pdf
  causematch run --cases lists/ --workbook records.xlsx --out matched_cases.csv
  causematch serve --addr 127.0.0.1:8501`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "配置文件路径（默认 ./"+config.FileName+"，不存在则忽略）")
	pf.StringVar(&a.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&a.logFormat, "log-format", "", "日志格式：console|json")

	root.AddCommand(a.extractCmd(), a.runCmd(), a.serveCmd())
	return root
}

// loadConfig 合并全局参数与子命令参数，并构造 logger。
func (a *app) loadConfig(cmd *cobra.Command, cli config.CLIArgs) (config.EffectiveConfig, *zap.Logger, error) {
	cli.ConfigPath = a.configPath
	cli.LogLevel, cli.LogLevelSet = a.logLevel, cmd.Flags().Changed("log-level")
	cli.LogFormat, cli.LogFormatSet = a.logFormat, cmd.Flags().Changed("log-format")

	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, nil, fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}
	log, err := logging.New(logging.Config{Level: eff.LogLevel, Format: eff.LogFormat, Output: a.stderr})
	if err != nil {
		return config.EffectiveConfig{}, nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	return eff, log, nil
}

// sourceFlags 是 extract 与 run 共用的 cause list 来源参数。
type sourceFlags struct {
	board        string
	keyword      string
	proxy        string
	cacheDir     string
	keepBrackets bool
	keepArising  bool
	exclude      []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.board, "board", "", "board 页面 URL：下载页面上的 cause list PDF")
	fl.StringVar(&f.keyword, "keyword", "", "只保留链接文本或 href 包含该关键字的 PDF")
	fl.StringVar(&f.proxy, "proxy", "", "HTTP 代理 URL")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "board 下载缓存目录")
	fl.BoolVar(&f.keepBrackets, "keep-brackets", false, "保留括号内的案号（默认去掉交叉引用）")
	fl.BoolVar(&f.keepArising, "keep-arising", false, "保留 ARISING FROM 行（默认丢弃）")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "扫描目录时排除的子目录（相对路径，可重复）")
}

func (f *sourceFlags) apply(cmd *cobra.Command, cli *config.CLIArgs) {
	fl := cmd.Flags()
	cli.BoardURL, cli.BoardURLSet = f.board, fl.Changed("board")
	cli.LinkKeyword, cli.LinkKeywordSet = f.keyword, fl.Changed("keyword")
	cli.ProxyURL, cli.ProxyURLSet = f.proxy, fl.Changed("proxy")
	cli.CacheDir, cli.CacheDirSet = f.cacheDir, fl.Changed("cache-dir")
	cli.KeepBrackets, cli.KeepBracketsSet = f.keepBrackets, fl.Changed("keep-brackets")
	cli.KeepArising, cli.KeepArisingSet = f.keepArising, fl.Changed("keep-arising")
	cli.ExcludeDirs = f.exclude
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// pickProgressWriter 返回进度输出目标：只在交互终端启用，优先 stderr，不污染 stdout JSON。
func (a *app) pickProgressWriter() (io.Writer, bool) {
	if isTTY(a.stderr) {
		return a.stderr, true
	}
	if isTTY(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}
