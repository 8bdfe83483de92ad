package domain

import (
	"errors"
	"fmt"
)

// 错误分级:
//   - FormatError / ErrConfiguration / ErrMissingTimestampColumn 为致命错误，
//     中止当前实体的处理并携带实体身份向上传播
//   - ErrEmptyAfterFilter 是跳过信号，不是错误: 过滤后无有效数据的实体直接略过
var (
	// ErrConfiguration 配置级错误 (不支持的粒度、未知特征名等)，不可重试
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedGranularity 不支持的窗口粒度
	ErrUnsupportedGranularity = fmt.Errorf("%w: unsupported aggregation granularity", ErrConfiguration)

	// ErrUnknownFeature 注册表中不存在的特征名
	ErrUnknownFeature = fmt.Errorf("%w: unknown feature", ErrConfiguration)

	// ErrMissingTimestampColumn 输入缺少时间戳列，属于致命输入错误
	ErrMissingTimestampColumn = errors.New("timestamp column missing from input")

	// ErrEmptyAfterFilter 停机过滤后没有剩余有效记录
	ErrEmptyAfterFilter = errors.New("no active records left after machine-off filtering")
)

// FormatError 时间戳不符合固定宽度格式契约
// 窗口截断只做字典序操作，格式不符时快速失败而不是猜测解析
type FormatError struct {
	Timestamp string
	Reason    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: %s", e.Timestamp, e.Reason)
}

// EntityError 为致命错误附加实体身份后向调用方传播
type EntityError struct {
	Entity string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity %q: %v", e.Entity, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// WrapEntity 包装错误并附加实体身份；err 为 nil 时返回 nil
func WrapEntity(entity string, err error) error {
	if err == nil {
		return nil
	}
	return &EntityError{Entity: entity, Err: err}
}
