package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"cmpulse/internal/model"
)

// 数值清洗时剔除的符号
var numericNoise = strings.NewReplacer(
	">", "", "<", "", "≥", "", "≤", "",
	"%", "", "％", "",
	",", "", "，", "",
	" ", "", "\t", "", "\u00a0", "",
)

// CleanNumeric 清洗数值：去除比较符号、百分号、空白与千分位，无法解析返回 nil
func CleanNumeric(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return finite(float64(x))
	case int64:
		return finite(float64(x))
	case *float64:
		if x == nil {
			return nil
		}
		return finite(*x)
	case string:
		s := numericNoise.Replace(strings.TrimSpace(x))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return finite(f)
	}
	return nil
}

// CleanPercent 清洗百分比并统一到 0-100 口径
//
// (0,1) 之间视为小数比例；来自字符串、带小数点且不带 % 的 <=2 值也视为小数比例。
func CleanPercent(v any) *float64 {
	n := CleanNumeric(v)
	if n == nil {
		return nil
	}
	val := *n
	if val > 0 && val < 1 {
		return model.Float(roundTo(val*100, 6))
	}
	if s, ok := v.(string); ok && val <= 2 && strings.Contains(s, ".") && !strings.ContainsAny(s, "%％") {
		return model.Float(roundTo(val*100, 6))
	}
	return model.Float(val)
}

// NormalizeName 规范化姓名/团队名：大写、去重音、仅保留字母数字空格连字符、压缩空白
func NormalizeName(v string) string {
	decomposed := norm.NFD.String(strings.TrimSpace(v))

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(unicode.ToUpper(r))
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"20060102",
}

// 序列号日期的合理范围（1900-01-01 .. 9999-12-31）
const (
	minSerialDate = 1
	maxSerialDate = 2958465
)

// ParseDate 解析日期：time.Time、表格序列号（含 1900 闰年缺陷修正）或字符串
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return TruncateDay(x), true
	case float64:
		return serialToDate(x)
	case int:
		return serialToDate(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return TruncateDay(t), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return serialToDate(f)
		}
	}
	return time.Time{}, false
}

func serialToDate(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < minSerialDate || serial > maxSerialDate {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return TruncateDay(t), true
}

// TruncateDay 截断到 UTC 日
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekOfMonth 月内周次 1..4（第 29-31 日并入第 4 周）
func WeekOfMonth(t time.Time) int {
	w := (t.Day() + 6) / 7
	if w > 4 {
		return 4
	}
	if w < 1 {
		return 1
	}
	return w
}

// Checksum mentor+周期 的确定性指纹
func Checksum(mentorName string, periodDate time.Time) string {
	key := NormalizeName(mentorName) + ":" + TruncateDay(periodDate).Format(model.DateLayout)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// SplitNotes 拆分备注：优先 "|"，否则 ","
func SplitNotes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
