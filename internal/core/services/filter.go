package services

import (
	"go.uber.org/zap"

	"github.com/renjie/featex/internal/core/domain"
)

// StateFilter 机器停机状态过滤器
// 根据相位相关的电流通道与机器阈值，判定并剔除停机状态的记录
type StateFilter struct {
	log *zap.SugaredLogger
}

// NewStateFilter 创建状态过滤器；log 为 nil 时使用 no-op logger
func NewStateFilter(log *zap.SugaredLogger) *StateFilter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &StateFilter{log: log}
}

// IsOff 判定单条记录是否处于停机状态
// 存在三路独立电流通道时: max(|I1|,|I2|,|I3|) <= 阈值
// 否则退回单路聚合通道 (IAVR_A 优先，其次 I1_A): |I| <= 阈值
func (f *StateFilter) IsOff(rec domain.Record, profile domain.MachineProfile) bool {
	threshold := profile.OffThreshold

	if rec.Has(domain.ChannelI2) {
		peak := rec.Abs(domain.ChannelI1)
		if v := rec.Abs(domain.ChannelI2); v > peak {
			peak = v
		}
		if v := rec.Abs(domain.ChannelI3); v > peak {
			peak = v
		}
		return peak <= threshold
	}

	target := domain.ChannelI1
	if rec.Has(domain.ChannelIAVR) {
		target = domain.ChannelIAVR
	}
	return rec.Abs(target) <= threshold
}

// FilterActive 剔除全部停机记录，保留原有顺序
// 结果为空时由调用方按"可整体跳过"处理，不视为错误
func (f *StateFilter) FilterActive(records []domain.Record, profile domain.MachineProfile) []domain.Record {
	active := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if !f.IsOff(r, profile) {
			active = append(active, r)
		}
	}
	f.log.Infof("removing %d/%d rows where machine is turned off", len(records)-len(active), len(records))
	return active
}
