package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params 特征函数的辅助参数集
type Params map[string]any

// Float 读取浮点参数 (兼容 YAML/JSON 反序列化产生的 int)
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Bool 读取布尔参数，缺失时返回 false
func (p Params) Bool(key string) bool {
	v, ok := p[key].(bool)
	return ok && v
}

// String 读取字符串参数
func (p Params) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Calculator 特征计算器: 有序数值序列 (+参数) -> 标量
// 必须是纯函数；未定义的输入返回 NaN 哨兵值，绝不 panic
type Calculator func(x []float64, p Params) float64

// FeatureDefinition 一个命名特征
// ParamSets 为空表示无参数调用一次；每个 (特征, 参数集) 组合
// 在每个通道上产出一个输出列
type FeatureDefinition struct {
	Name      string
	Calc      Calculator
	ParamSets []Params
}

// Registry 不可变的有序特征注册表
// 在启动时一次性构建后只读，可安全地被所有 worker 共享
type Registry struct {
	defs  []FeatureDefinition
	index map[string]int
}

// NewRegistry 构建注册表；定义顺序决定输出列顺序
func NewRegistry(defs ...FeatureDefinition) Registry {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	return Registry{defs: defs, index: index}
}

// Definitions 按注册顺序返回全部特征定义
func (r Registry) Definitions() []FeatureDefinition {
	return append([]FeatureDefinition(nil), r.defs...)
}

// Lookup 按名称查找特征定义
func (r Registry) Lookup(name string) (FeatureDefinition, error) {
	i, ok := r.index[name]
	if !ok {
		return FeatureDefinition{}, fmt.Errorf("%w %q", ErrUnknownFeature, name)
	}
	return r.defs[i], nil
}

// Len 注册表中的特征数量
func (r Registry) Len() int {
	return len(r.defs)
}

// ColumnName 输出列的稳定命名: 通道__特征[__参数_取值...]
// 参数段按键名排序，保证同一定义在任何运行下产生相同列名
func ColumnName(channel, feature string, p Params) string {
	var b strings.Builder
	b.WriteString(channel)
	b.WriteString("__")
	b.WriteString(feature)
	if len(p) > 0 {
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("__")
			b.WriteString(k)
			b.WriteByte('_')
			b.WriteString(formatParamValue(p[k]))
		}
	}
	return b.String()
}

func formatParamValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
