package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// ExportDateLayout 导出文件名前缀日期格式：补零的 MM.DD.YYYY
const ExportDateLayout = "01.02.2006"

// exportDateTokenLen 日期前缀固定长度
const exportDateTokenLen = 10

// InvalidFilenameDateError 导出文件名缺少合法日期前缀
//
// 该错误对整个导入是致命的：任何一个文件名不合法都会中止本次运行。
type InvalidFilenameDateError struct {
	Filename string
	Token    string
	Err      error
}

func (e *InvalidFilenameDateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export filename %q: leading token %q is not a zero-padded MM.DD.YYYY date: %v", e.Filename, e.Token, e.Err)
	}
	return fmt.Sprintf("export filename %q: leading token %q must be exactly %d characters (zero-padded MM.DD.YYYY)", e.Filename, e.Token, exportDateTokenLen)
}

func (e *InvalidFilenameDateError) Unwrap() error {
	return e.Err
}

// exportExt 导出文件扩展名；日期本身含 "."，不能用 filepath.Ext 截取
const exportExt = ".csv"

// LeadingToken 取文件名（去掉目录）中第一个空格之前的部分；没有空格时去掉 .csv 后缀
// "03.15.2018 Provider Export.csv" → "03.15.2018"
// "03.15.2018 Provider Export" → "03.15.2018"
// "03.15.2018.csv" → "03.15.2018"
func LeadingToken(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexByte(base, ' '); i >= 0 {
		return base[:i]
	}
	if len(base) > len(exportExt) && strings.EqualFold(base[len(base)-len(exportExt):], exportExt) {
		return base[:len(base)-len(exportExt)]
	}
	return base
}

// ParseExportFilename 从导出文件名解析观测日期
// 文件内的时间戳不可靠，日期只以文件名为准。
func ParseExportFilename(filename string) (time.Time, error) {
	token := LeadingToken(filename)
	if utf8.RuneCountInString(token) != exportDateTokenLen {
		return time.Time{}, &InvalidFilenameDateError{Filename: filepath.Base(filename), Token: token}
	}

	date, err := time.Parse(ExportDateLayout, token)
	if err != nil {
		return time.Time{}, &InvalidFilenameDateError{Filename: filepath.Base(filename), Token: token, Err: err}
	}
	return date, nil
}

// FormatDisplayDate 页面展示日期 MM/DD/YYYY
func FormatDisplayDate(t time.Time) string {
	return t.Format("01/02/2006")
}
