package ports

import (
	"context"
	"io"

	"github.com/renjie/featex/internal/core/domain"
)

// ArchiveProvider 原始档案提供者 (外部协作方)
// 职责: 枚举档案内的输入实体并按名打开数据流；核心只消费记录流，
// 不感知档案内部结构
type ArchiveProvider interface {
	// Entities 返回档案内全部输入实体名
	Entities() []string

	// Open 打开指定实体的数据流
	Open(name string) (io.ReadCloser, error)

	Close() error
}

// RecordSource 记录来源: 将实体数据流解析为原始记录表
// 时间戳列缺失是致命输入错误；配置通道缺失则容忍并收窄
type RecordSource interface {
	Read(ctx context.Context, stream io.Reader, profile domain.MachineProfile) ([]domain.Record, error)
}

// MatrixSink 特征矩阵输出
type MatrixSink interface {
	Write(ctx context.Context, entity string, matrix *domain.FeatureMatrix) error
}

// ArchiveFetcher 源档案获取 (本地缺失时从远端拉取)
type ArchiveFetcher interface {
	Ensure(ctx context.Context, url, dest string) error
}

// FeatureExtractor 核心提取服务
// 按窗口分组记录，对每个 (窗口, 通道, 特征, 参数集) 组合计算标量，
// 装配为按窗口标识升序的特征矩阵
// 前置条件: records 来自同一个 RecordSource 解析结果，所有记录共享
// 同一通道键集合 (表格型输入天然满足)；通道存在性按首条记录判定
type FeatureExtractor interface {
	Extract(ctx context.Context, records []domain.Record, profile domain.MachineProfile) (*domain.FeatureMatrix, error)
}
