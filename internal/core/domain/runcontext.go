package domain

import (
	"context"

	"github.com/google/uuid"
)

// RunInfo 携带一次实体处理的运行上下文，用于日志关联
type RunInfo struct {
	RunID  string // 本次批处理运行的唯一标识
	Entity string // 当前处理的实体 (档案内文件名)
}

// NewRunInfo 为一个实体生成运行上下文
func NewRunInfo(entity string) RunInfo {
	return RunInfo{RunID: uuid.NewString(), Entity: entity}
}

type runInfoKey struct{}

// NewContext returns a new Context that carries the RunInfo value.
func NewContext(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// FromContext returns the RunInfo value stored in ctx, if any.
func FromContext(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}
