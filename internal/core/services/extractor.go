package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/renjie/featex/internal/core/domain"
	"github.com/renjie/featex/internal/core/ports"
	"github.com/renjie/featex/internal/core/services/features"
)

// Extractor 特征提取编排器
// 将过滤后的记录按窗口分组，对每个 (窗口, 通道) 应用注册表内
// 全部特征定义，装配为行列顺序确定的特征矩阵
type Extractor struct {
	granularity     domain.Granularity
	registry        domain.Registry
	workers         int
	prune           bool
	winterChangeDay string
	log             *zap.SugaredLogger
}

var _ ports.FeatureExtractor = (*Extractor)(nil)

// Option 提取器的可选配置
type Option func(*Extractor)

// WithGranularity 设置窗口粒度
func WithGranularity(g domain.Granularity) Option {
	return func(e *Extractor) { e.granularity = g }
}

// WithRegistry 注入特征注册表 (默认内置注册表)
func WithRegistry(r domain.Registry) Option {
	return func(e *Extractor) { e.registry = r }
}

// WithWorkers 设置并行 worker 数量；纯函数单元格计算可安全并行
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithFiltering 启用停机记录剔除
func WithFiltering(enabled bool) Option {
	return func(e *Extractor) { e.prune = enabled }
}

// WithWinterChangeDay 设置夏令时切换日的规范窗口标识
func WithWinterChangeDay(day string) Option {
	return func(e *Extractor) { e.winterChangeDay = day }
}

// WithLogger 注入日志器
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Extractor) { e.log = log }
}

// NewExtractor 创建提取器
// 默认: 15 分钟粒度、内置注册表、单 worker、不过滤停机记录
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		granularity:     domain.Granularity15Minutes,
		registry:        features.BuiltinRegistry(),
		workers:         1,
		winterChangeDay: domain.DefaultWinterChangeDay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	return e
}

// logger 返回绑定运行身份的日志器
// 上下文携带 RunInfo 时，所有日志附加 run_id/entity 字段便于关联
func (e *Extractor) logger(ctx context.Context) *zap.SugaredLogger {
	if info, ok := domain.FromContext(ctx); ok {
		return e.log.With("run_id", info.RunID, "entity", info.Entity)
	}
	return e.log
}

// featureCell 展开后的 (特征, 参数集) 组合，每通道一列
type featureCell struct {
	def    domain.FeatureDefinition
	params domain.Params
}

// Extract 实现 ports.FeatureExtractor
// 前置条件: records 由同一来源解析，通道键集合同构 (见 ports.FeatureExtractor)
func (e *Extractor) Extract(ctx context.Context, records []domain.Record, profile domain.MachineProfile) (*domain.FeatureMatrix, error) {
	if !e.granularity.Valid() {
		return nil, fmt.Errorf("%w %q", domain.ErrUnsupportedGranularity, e.granularity)
	}
	if len(records) == 0 {
		return nil, domain.ErrEmptyAfterFilter
	}
	log := e.logger(ctx)

	// 1. 目标通道与实际存在通道求交集；缺失的配置通道只告警并收窄
	present := e.presentChannels(log, records[0], profile)
	if len(present) == 0 {
		log.Warnw("no configured channels present in input", "machine", profile.MachineID)
		return nil, domain.ErrEmptyAfterFilter
	}

	// 2. 可选: 剔除停机记录
	if e.prune {
		records = NewStateFilter(log).FilterActive(records, profile)
		if len(records) == 0 {
			return nil, domain.ErrEmptyAfterFilter
		}
	}

	// 3. 按窗口标识分组；组内保持输入的时间顺序
	groups := make(map[string][]domain.Record)
	for _, r := range records {
		id, err := domain.AssignWindowIn(r.Timestamp, e.granularity, e.winterChangeDay)
		if err != nil {
			return nil, err
		}
		groups[id] = append(groups[id], r)
	}

	windows := make([]string, 0, len(groups))
	for id := range groups {
		windows = append(windows, id)
	}
	// 固定宽度表示下字典序等价于时间序
	sort.Strings(windows)

	// 4. 确定列顺序: weekday 首列，其后按 通道 × 特征 × 参数集 展开
	cells := expandRegistry(e.registry)
	columns := make([]string, 0, 1+len(present)*len(cells))
	columns = append(columns, "weekday")
	for _, ch := range present {
		for _, c := range cells {
			columns = append(columns, domain.ColumnName(ch, c.def.Name, c.params))
		}
	}

	matrix := domain.NewFeatureMatrix(windows, columns)
	for row, id := range windows {
		if wd, err := domain.Weekday(id); err == nil {
			matrix.Set(row, 0, float64(wd))
		}
	}

	// 5. 并行计算: 每个 (窗口, 通道) 任务写入互不相交的单元格段，
	//    无共享可变状态；输出顺序与并行度无关
	if err := e.computeCells(ctx, log, matrix, windows, groups, present, cells); err != nil {
		return nil, err
	}
	return matrix, nil
}

// presentChannels 求配置通道与输入列的交集，保持画像中的通道顺序
// 通道键集合同构的前提下，探测首条记录即可代表整批
func (e *Extractor) presentChannels(log *zap.SugaredLogger, sample domain.Record, profile domain.MachineProfile) []string {
	var present, missing []string
	for _, ch := range profile.Channels {
		if sample.Has(ch) {
			present = append(present, ch)
		} else {
			missing = append(missing, ch)
		}
	}
	if len(missing) > 0 {
		log.Infof("missing columns: %v", missing)
	}
	return present
}

func expandRegistry(r domain.Registry) []featureCell {
	var cells []featureCell
	for _, d := range r.Definitions() {
		if len(d.ParamSets) == 0 {
			cells = append(cells, featureCell{def: d})
			continue
		}
		for _, p := range d.ParamSets {
			cells = append(cells, featureCell{def: d, params: p})
		}
	}
	return cells
}

type cellTask struct {
	row     int
	channel string
	colBase int // 该 (窗口, 通道) 任务的首列下标
}

func (e *Extractor) computeCells(ctx context.Context, log *zap.SugaredLogger, matrix *domain.FeatureMatrix, windows []string, groups map[string][]domain.Record, present []string, cells []featureCell) error {
	tasks := make(chan cellTask)
	var wg sync.WaitGroup

	workers := e.workers
	if total := len(windows) * len(present); workers > total {
		workers = total
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				seq := channelSequence(groups[windows[t.row]], t.channel)
				for i, c := range cells {
					matrix.Set(t.row, t.colBase+i, computeOne(log, c, seq))
				}
			}
		}()
	}

	perChannel := len(cells)
	var dispatchErr error
dispatch:
	for row := range windows {
		for ci, ch := range present {
			select {
			case <-ctx.Done():
				dispatchErr = ctx.Err()
				break dispatch
			case tasks <- cellTask{row: row, channel: ch, colBase: 1 + ci*perChannel}:
			}
		}
	}
	close(tasks)
	wg.Wait()
	return dispatchErr
}

// computeOne 计算单个单元格
// 计算器按约定不会 panic，这里仍然兜底: 任何单元格失败只记为 NaN，
// 绝不让单点故障中止整个矩阵
func computeOne(log *zap.SugaredLogger, c featureCell, seq []float64) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Debugw("feature calculator failed", "feature", c.def.Name, "cause", r)
			v = math.NaN()
		}
	}()
	return c.def.Calc(seq, c.params)
}

// channelSequence 抽取一组记录在指定通道上的有序取值序列
func channelSequence(records []domain.Record, channel string) []float64 {
	seq := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Value(channel); ok {
			seq = append(seq, v)
		}
	}
	return seq
}
