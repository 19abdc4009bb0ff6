package match

import (
	"math"
	"regexp"
	"strconv"

	"github.com/John-Robertt/causematch/internal/domain"
)

// 19xx / 20xx，且不能是更长数字串的一部分（RE2 无 lookaround，边界由 yearInName 判定）。
var sheetYearRE = regexp.MustCompile(`(?:19|20)[0-9]{2}`)

// cellYear 把年份单元格解析为整数年份；非数字、非整数、非正数都视为解析失败。
func cellYear(c domain.Cell) (string, bool) {
	f, ok := c.Number()
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

// yearInName 从工作表名中找第一个 4 位年份（例如 "Cases_2023" -> "2023"）。
func yearInName(name string) (string, bool) {
	for _, loc := range sheetYearRE.FindAllStringIndex(name, -1) {
		if loc[0] > 0 && isDigit(name[loc[0]-1]) {
			continue
		}
		if loc[1] < len(name) && isDigit(name[loc[1]]) {
			continue
		}
		return name[loc[0]:loc[1]], true
	}
	return "", false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
