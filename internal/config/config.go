package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/John-Robertt/causematch/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在（默认位置的配置文件是可选的）。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// FileName 是工作目录下默认查找的配置文件名。
	FileName = "causematch.yaml"
	// EnvPrefix 是环境变量前缀：CAUSEMATCH_SERVER_ADDR -> server.addr。
	EnvPrefix = "CAUSEMATCH_"

	DefaultAddr        = "127.0.0.1:8501"
	DefaultMaxUploadMB = 32
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	maxConfigFileSize = 1 << 20
)

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --keep-brackets=false 必须能覆盖配置中的 true。
type CLIArgs struct {
	ConfigPath string

	BoardURL     string
	LinkKeyword  string
	ProxyURL     string
	CacheDir     string
	Out          string
	Addr         string
	LogLevel     string
	LogFormat    string
	ExcludeDirs  []string
	KeepBrackets bool
	KeepArising  bool

	// *Set 标记对应字段是否由 CLI 显式给出。
	BoardURLSet, LinkKeywordSet, ProxyURLSet, CacheDirSet, OutSet, AddrSet bool
	LogLevelSet, LogFormatSet, KeepBracketsSet, KeepArisingSet          bool
}

// FileConfig 对应 causematch.yaml（以及 CAUSEMATCH_* 环境变量）的结构。
type FileConfig struct {
	Proxy struct {
		URL string `koanf:"url"`
	} `koanf:"proxy"`
	Board struct {
		URL         string `koanf:"url"`
		LinkKeyword string `koanf:"link_keyword"`
	} `koanf:"board"`
	Cache struct {
		Dir      string `koanf:"dir"`
		ReadOnly bool   `koanf:"read_only"`
	} `koanf:"cache"`
	Export struct {
		Out string `koanf:"out"`
	} `koanf:"export"`
	Server struct {
		Addr        string `koanf:"addr"`
		MaxUploadMB int    `koanf:"max_upload_mb"`
	} `koanf:"server"`
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	Extract struct {
		KeepBrackets bool `koanf:"keep_brackets"`
		KeepArising  bool `koanf:"keep_arising"`
	} `koanf:"extract"`
	Scan struct {
		ExcludeDirs []string `koanf:"exclude_dirs"`
	} `koanf:"scan"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigFile 是实际加载的配置文件绝对路径；未加载为空。
	ConfigFile string

	ProxyURL      string
	BoardURL      string
	LinkKeyword   string
	CacheDir      string
	CacheReadOnly bool
	Out           string
	ExcludeDirs   []string

	Addr        string
	MaxUploadMB int

	LogLevel  string
	LogFormat string

	KeepBrackets bool
	KeepArising  bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 给了 --config：必须存在
// 2) 否则尝试 <cwd>/causematch.yaml（可选）
//
// 覆盖优先级（固定）：CLI > CAUSEMATCH_* 环境变量 > 配置文件 > 内置默认值。
// 相对路径（cache.dir / export.out / --config）都以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	k := koanf.New(".")

	content, exists, err := readConfigFile(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists && required {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if exists {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("读取环境变量失败：%w", err)}
	}

	var fc FileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		p := ""
		if exists {
			p = cfgPath
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}

	eff := merge(cwdAbs, cli, fc)
	if exists {
		eff.ConfigFile = cfgPath
	}
	if err := validate(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: eff.ConfigFile, Err: err}
	}
	return eff, nil
}

// envKey 把 CAUSEMATCH_SERVER_MAX_UPLOAD_MB 映射为 server.max_upload_mb：
// 只按第一个下划线切分 section，字段名内部的下划线保留。
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) EffectiveConfig {
	eff := EffectiveConfig{
		ProxyURL:      strings.TrimSpace(fc.Proxy.URL),
		BoardURL:      strings.TrimSpace(fc.Board.URL),
		LinkKeyword:   strings.TrimSpace(fc.Board.LinkKeyword),
		CacheDir:      strings.TrimSpace(fc.Cache.Dir),
		CacheReadOnly: fc.Cache.ReadOnly,
		Out:           strings.TrimSpace(fc.Export.Out),
		ExcludeDirs:   append([]string(nil), fc.Scan.ExcludeDirs...),
		Addr:          strings.TrimSpace(fc.Server.Addr),
		MaxUploadMB:   fc.Server.MaxUploadMB,
		LogLevel:      strings.ToLower(strings.TrimSpace(fc.Log.Level)),
		LogFormat:     strings.ToLower(strings.TrimSpace(fc.Log.Format)),
		KeepBrackets:  fc.Extract.KeepBrackets,
		KeepArising:   fc.Extract.KeepArising,
	}

	override := func(dst *string, v string, set bool) {
		if set {
			*dst = strings.TrimSpace(v)
		}
	}
	override(&eff.BoardURL, cli.BoardURL, cli.BoardURLSet)
	override(&eff.LinkKeyword, cli.LinkKeyword, cli.LinkKeywordSet)
	override(&eff.ProxyURL, cli.ProxyURL, cli.ProxyURLSet)
	override(&eff.CacheDir, cli.CacheDir, cli.CacheDirSet)
	override(&eff.Out, cli.Out, cli.OutSet)
	override(&eff.Addr, cli.Addr, cli.AddrSet)
	override(&eff.LogLevel, strings.ToLower(cli.LogLevel), cli.LogLevelSet)
	override(&eff.LogFormat, strings.ToLower(cli.LogFormat), cli.LogFormatSet)
	if cli.KeepBracketsSet {
		eff.KeepBrackets = cli.KeepBrackets
	}
	if cli.KeepArisingSet {
		eff.KeepArising = cli.KeepArising
	}
	if len(cli.ExcludeDirs) > 0 {
		eff.ExcludeDirs = append(eff.ExcludeDirs, cli.ExcludeDirs...)
	}

	if eff.Addr == "" {
		eff.Addr = DefaultAddr
	}
	if eff.MaxUploadMB == 0 {
		eff.MaxUploadMB = DefaultMaxUploadMB
	}
	if eff.LogLevel == "" {
		eff.LogLevel = DefaultLogLevel
	}
	if eff.LogFormat == "" {
		eff.LogFormat = DefaultLogFormat
	}
	if eff.CacheDir != "" {
		eff.CacheDir = absCleanFrom(cwdAbs, eff.CacheDir)
	}
	if eff.Out != "" {
		eff.Out = absCleanFrom(cwdAbs, eff.Out)
	}
	return eff
}

func validate(eff EffectiveConfig) error {
	if eff.ProxyURL != "" {
		if _, err := url.Parse(eff.ProxyURL); err != nil {
			return fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	if eff.BoardURL != "" {
		u, err := url.Parse(eff.BoardURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("board.url 无效：%q", eff.BoardURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("board.url 必须是 http/https：%q", eff.BoardURL)
		}
	}
	if _, _, err := net.SplitHostPort(eff.Addr); err != nil {
		return fmt.Errorf("server.addr 无效：%q", eff.Addr)
	}
	// 上限只是防呆：cause list 与 workbook 通常只有几 MB。
	if eff.MaxUploadMB < 1 || eff.MaxUploadMB > 1024 {
		return fmt.Errorf("server.max_upload_mb 必须在 [1, 1024] 之间，实际是 %d", eff.MaxUploadMB)
	}
	switch eff.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", eff.LogLevel)
	}
	switch eff.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log.format 只能是 console 或 json，实际是 %q", eff.LogFormat)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readConfigFile 读取配置文件原始内容。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readConfigFile(path string) (content []byte, exists bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if fi.IsDir() {
		return nil, true, fmt.Errorf("是目录而不是文件")
	}
	if fi.Size() > maxConfigFileSize {
		return nil, true, fmt.Errorf("文件过大（%d 字节，上限 %d）", fi.Size(), maxConfigFileSize)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, true, err
	}
	return b, true, nil
}
