// Package source 负责把外部文档（PDF、文本、workbook）解码为核心可以消费的形态。
//
// 解码失败只影响对应的那一个资源：调用方拿到 *DecodeError 后记录并继续处理其它输入。
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DecodeError 表示某个外部文档无法解码。
type DecodeError struct {
	Path string
	Kind string // "pdf" / "text" / "xlsx" / "csv"
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("无法解码 %s：%v", e.Kind, e.Err)
	}
	return fmt.Sprintf("无法解码 %s %q：%v", e.Kind, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode 判断 err 是否为解码失败（而不是 I/O 失败）。
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NormalizeText 做 NFKC 归一（全角 "／"、"ＷＰ" 等变为半角）并统一换行符为 \n。
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ReadText 读取纯文本形态的 cause list（去掉 UTF-8 BOM）。
func ReadText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	return NormalizeText(string(b)), nil
}

func ReadTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReadText(f)
}
