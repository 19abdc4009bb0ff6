package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/causematch/internal/domain"
)

// CauseLists 扫描 root 下的 cause list 文件（.pdf / .txt），并应用目录排除规则。
//
// 规则：
// - 永久排除：<root>/cache/（board 下载缓存的默认位置）
// - excludeDirs：相对 root 的路径（绝对路径按绝对路径处理）
// - 隐藏文件（. 开头）跳过，避免把 fsx 的临时文件当输入
//
// 输出按 RelPath 排序，多个文件的文本按该顺序拼接。
func CauseLists(root string, excludeDirs []string) ([]domain.CauseListFile, error) {
	root, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, err
	}
	excluded := buildExcluded(root, excludeDirs)

	var files []domain.CauseListFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		kind := KindOf(d.Name())
		if kind == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, domain.CauseListFile{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Kind:    kind,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// KindOf 按扩展名判断 cause list 类型；不支持的返回空串。
func KindOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return domain.SourceKindPDF
	case ".txt":
		return domain.SourceKindText
	default:
		return ""
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := []string{filepath.Join(root, "cache")}
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if path == base || strings.HasPrefix(path, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
