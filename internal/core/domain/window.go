package domain

import (
	"fmt"
	"time"
)

// Granularity 窗口粒度
type Granularity string

const (
	GranularityMinute    Granularity = "minute"
	Granularity10Minutes Granularity = "10-minutes"
	Granularity15Minutes Granularity = "15-minutes"
	GranularityHour      Granularity = "1-hour"
	GranularityDay       Granularity = "1-day"
)

// Valid 判断是否为受支持的粒度
func (g Granularity) Valid() bool {
	switch g {
	case GranularityMinute, Granularity10Minutes, Granularity15Minutes, GranularityHour, GranularityDay:
		return true
	}
	return false
}

// ParseGranularity 解析配置中的粒度取值
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnsupportedGranularity, s)
	}
	return g, nil
}

// DefaultWinterChangeDay 夏令时切换日 (夏转冬) 的规范窗口标识
// 该日的所有记录折叠进同一个 1-day 窗口，偏移量统一为切换前的取值
const DefaultWinterChangeDay = "2017-10-29T00:00:00.000+02"

// 时间戳固定宽度格式: YYYY-MM-DDTHH:MM:SS.mmm±HH
// 各字段的字节位置是固定的，窗口截断直接在字节层面完成，
// 刻意避开通用日历解析 (高频数据量下的性能取舍，见 FormatError)
const timestampWidth = 26

// ValidateTimestamp 校验时间戳是否符合固定宽度契约
// 只校验形状 (长度、分隔符、数字位)，不做日历合法性检查
func ValidateTimestamp(ts string) error {
	if len(ts) != timestampWidth {
		return &FormatError{Timestamp: ts, Reason: fmt.Sprintf("want %d bytes, got %d", timestampWidth, len(ts))}
	}
	for i := 0; i < timestampWidth; i++ {
		c := ts[i]
		switch i {
		case 4, 7:
			if c != '-' {
				return &FormatError{Timestamp: ts, Reason: fmt.Sprintf("want '-' at byte %d", i)}
			}
		case 10:
			if c != 'T' {
				return &FormatError{Timestamp: ts, Reason: "want 'T' at byte 10"}
			}
		case 13, 16:
			if c != ':' {
				return &FormatError{Timestamp: ts, Reason: fmt.Sprintf("want ':' at byte %d", i)}
			}
		case 19:
			if c != '.' {
				return &FormatError{Timestamp: ts, Reason: "want '.' at byte 19"}
			}
		case 23:
			if c != '+' && c != '-' {
				return &FormatError{Timestamp: ts, Reason: "want offset sign at byte 23"}
			}
		default:
			if c < '0' || c > '9' {
				return &FormatError{Timestamp: ts, Reason: fmt.Sprintf("want digit at byte %d", i)}
			}
		}
	}
	return nil
}

// AssignWindow 将时间戳映射到所属固定长度区间的窗口标识
// 纯函数；对相同截断前缀的输入恒返回相同标识
func AssignWindow(ts string, g Granularity) (string, error) {
	return AssignWindowIn(ts, g, DefaultWinterChangeDay)
}

// AssignWindowIn 同 AssignWindow，夏令时切换日可配置
// winterChangeDay 为该日 1-day 窗口的规范标识 (切换前偏移量)
func AssignWindowIn(ts string, g Granularity, winterChangeDay string) (string, error) {
	if err := ValidateTimestamp(ts); err != nil {
		return "", err
	}

	switch g {
	case GranularityMinute:
		return ts[:16] + ":00.000" + ts[23:], nil
	case Granularity10Minutes:
		return ts[:15] + "0:00.000" + ts[23:], nil
	case Granularity15Minutes:
		m := int(ts[14]-'0')*10 + int(ts[15]-'0')
		m = m / 15 * 15
		return ts[:14] + string([]byte{byte('0' + m/10), byte('0' + m%10)}) + ":00.000" + ts[23:], nil
	case GranularityHour:
		return ts[:13] + ":00:00.000" + ts[23:], nil
	case GranularityDay:
		id := ts[:11] + "00:00:00.000" + ts[23:]
		// 切换日特例: 切换后的记录带冬令时偏移，统一折叠回规范标识
		if len(winterChangeDay) == timestampWidth && id == winterChangeDay[:timestampWidth-1]+"1" {
			return winterChangeDay, nil
		}
		return id, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedGranularity, g)
	}
}

// Weekday 从窗口标识的日期部分计算星期 (周一 = 1 ... 周日 = 7)
func Weekday(windowID string) (int, error) {
	if len(windowID) < 10 {
		return 0, &FormatError{Timestamp: windowID, Reason: "window identifier shorter than date prefix"}
	}
	t, err := time.Parse("2006-01-02", windowID[:10])
	if err != nil {
		return 0, &FormatError{Timestamp: windowID, Reason: "invalid date prefix"}
	}
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // time.Sunday == 0
	}
	return wd, nil
}
