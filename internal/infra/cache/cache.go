package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/causematch/internal/infra/fsx"
)

// Store 提供 <dir>/board/ 下的下载缓存（board 页面 HTML 与 cause list PDF）。
//
// 约束：
// - Root 为空：缓存关闭（读永远 miss，写永远 ErrReadOnly）
// - ReadOnly=true：只读（cache.read_only，用于共享的只读缓存目录）
// - 缓存键是 URL 的 sha256，避免把 URL 中的任意字符带进文件名
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

const (
	KindPage = "html"
	KindPDF  = "pdf"
)

func New(root string, readOnly bool) Store {
	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}
	return Store{Root: root, ReadOnly: readOnly}
}

func (s Store) Enabled() bool { return s.Root != "" }

// Path 返回某个 URL 在缓存中的绝对路径。
func (s Store) Path(kind, rawURL string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("cache 未启用")
	}
	if err := checkKind(kind); err != nil {
		return "", err
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("url 不能为空")
	}
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(s.Root, "board", hex.EncodeToString(sum[:])+"."+kind), nil
}

// Read 读取缓存；不存在（或缓存关闭）返回 ok=false 且 err=nil。
func (s Store) Read(kind, rawURL string) ([]byte, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	path, err := s.Path(kind, rawURL)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) Write(kind, rawURL string, b []byte) error {
	if !s.Enabled() || s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.Path(kind, rawURL)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, b)
}

func checkKind(kind string) error {
	switch kind {
	case KindPage, KindPDF:
		return nil
	default:
		return fmt.Errorf("非法缓存类型：%q", kind)
	}
}
