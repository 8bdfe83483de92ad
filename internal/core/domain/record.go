package domain

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
)

// TimestampColumn 输入表中的时间戳列名
const TimestampColumn = "SensorDateTime"

// 相位相关的电流通道名
const (
	ChannelI1   = "I1_A"
	ChannelI2   = "I2_A"
	ChannelI3   = "I3_A"
	ChannelIAVR = "IAVR_A"
)

// 各相位配置对应的数据通道集 (带单位后缀)
var (
	channels2Phase = []string{"V1_V", "F_Hz", "I1_A", "P_kW", "Q_kvar", "S_kVA", "L1_F"}
	channels3Phase = []string{"VAVR_V", "F_Hz", "IAVR_A", "P_kW", "Q_kvar", "S_kVA", "L_F"}
)

// Record 代表一条原始传感器读数
// 读数一旦解析完成即不可变；缺失的数值单元格以 NaN 表示
type Record struct {
	Timestamp string             // 固定格式: YYYY-MM-DDTHH:MM:SS.mmm±HH
	Values    map[string]float64 // 通道名 -> 读数
}

// Value 返回指定通道的读数
func (r Record) Value(channel string) (float64, bool) {
	v, ok := r.Values[channel]
	return v, ok
}

// Has 判断记录中是否存在指定通道
func (r Record) Has(channel string) bool {
	_, ok := r.Values[channel]
	return ok
}

// Abs 取指定通道读数的绝对值 (缺失通道视为 NaN，永远不会低于任何阈值)
func (r Record) Abs(channel string) float64 {
	v, ok := r.Values[channel]
	if !ok {
		return math.NaN()
	}
	return math.Abs(v)
}

// ThresholdTable 按机器标识的停机电流阈值表
// 默认值语义: 未配置的机器一律使用 Default (0.0)
type ThresholdTable struct {
	Default   float64
	Overrides map[string]float64
}

// Get 查询指定机器的停机阈值，未配置时返回默认值
func (t ThresholdTable) Get(machineID string) float64 {
	if v, ok := t.Overrides[machineID]; ok {
		return v
	}
	return t.Default
}

// MachineProfile 单台机器的静态画像
// 每个输入实体构建一次，之后只读
type MachineProfile struct {
	MachineID    string
	PhaseCount   int
	Channels     []string // 该相位配置下的目标数据通道 (决定输出列顺序)
	OffThreshold float64
}

// ChannelsForPhase 根据相位数选择数据通道集
func ChannelsForPhase(phase int) ([]string, error) {
	switch phase {
	case 2:
		return append([]string(nil), channels2Phase...), nil
	case 3:
		return append([]string(nil), channels3Phase...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported phase count %d", ErrConfiguration, phase)
	}
}

// ResolveProfile 从实体文件名解析机器画像
// 命名约定: <Machine>_PhaseCount_<N>_... (HIPE 数据集的文件命名)
func ResolveProfile(entityName string, thresholds ThresholdTable) (MachineProfile, error) {
	base := path.Base(entityName)
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return MachineProfile{}, fmt.Errorf("%w: cannot resolve machine profile from entity name %q", ErrConfiguration, entityName)
	}

	phase, err := strconv.Atoi(parts[2])
	if err != nil {
		return MachineProfile{}, fmt.Errorf("%w: invalid phase count %q in entity name %q", ErrConfiguration, parts[2], entityName)
	}

	channels, err := ChannelsForPhase(phase)
	if err != nil {
		return MachineProfile{}, err
	}

	return MachineProfile{
		MachineID:    parts[0],
		PhaseCount:   phase,
		Channels:     channels,
		OffThreshold: thresholds.Get(parts[0]),
	}, nil
}
