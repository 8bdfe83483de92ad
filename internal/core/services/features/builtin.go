package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/renjie/featex/internal/core/domain"
)

// --- Factory ---

// BuiltinRegistry 构建内置特征注册表
// 注册顺序即输出列顺序，构建完成后不可变
func BuiltinRegistry() domain.Registry {
	return domain.NewRegistry(
		// 无时序依赖的单值统计
		def("count_above_mean", countAboveMean),
		def("count_below_mean", countBelowMean),
		def("has_duplicate", hasDuplicate),
		def("has_duplicate_max", hasDuplicateMax),
		def("has_duplicate_min", hasDuplicateMin),
		def("kurtosis", kurtosis),
		def("length", length),
		def("percentage_non_zero_values", percentageNonZeroValues),
		def("maximum", maximum),
		def("minimum", minimum),
		def("mean", mean),
		def("median", median),
		def("crest_factor", crestFactor),
		def("percentage_of_reoccurring_values_to_all_values", percentageReoccurringValues),
		def("percentage_of_reoccurring_datapoints_to_all_datapoints", percentageReoccurringDatapoints),
		def("num_states", numStates),
		def("skewness", skewness),
		def("standard_deviation", standardDeviation),
		// 局部形状特征 (依赖相邻值顺序)
		def("absolute_sum_of_changes", absoluteSumOfChanges),
		def("mean_second_derivative_central", meanSecondDerivativeCentral),
		def("first_location_of_maximum", firstLocationOfMaximum),
		def("first_location_of_minimum", firstLocationOfMinimum),
		def("last_location_of_maximum", lastLocationOfMaximum),
		def("last_location_of_minimum", lastLocationOfMinimum),
		def("num_maxima", numMaxima),
		def("num_minima", numMinima),
		def("longest_strike_above_mean", longestStrikeAboveMean),
		def("longest_strike_below_mean", longestStrikeBelowMean),
		def("mean_abs_change", meanAbsChange),
		def("mean_change", meanChange),
		def("number_crossing_mean", numberCrossingMean),
		// 全局趋势特征
		def("linear_weighted_average", linearWeightedAverage),
		domain.FeatureDefinition{
			Name:      "linear_trend",
			Calc:      linearTrend,
			ParamSets: []domain.Params{{"attr": "slope"}},
		},
		def("quadratic_weighted_average", quadraticWeightedAverage),
		def("sample_entropy", sampleEntropy),
		domain.FeatureDefinition{
			Name:      "cid_ce",
			Calc:      cidCE,
			ParamSets: []domain.Params{{"normalize": true}},
		},
	)
}

// def 封装无参数特征
func def(name string, f func([]float64) float64) domain.FeatureDefinition {
	return domain.FeatureDefinition{
		Name: name,
		Calc: func(x []float64, _ domain.Params) float64 { return f(x) },
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// --- Concrete Calculators ---
// 退化输入策略: 空序列一律返回 NaN 哨兵；自由度不足 (如单元素方差) 也返回
// NaN，绝不 panic。NaN 与零是不同的语义。

func countAboveMean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	n := 0
	for _, v := range x {
		if v > m {
			n++
		}
	}
	return float64(n)
}

func countBelowMean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	n := 0
	for _, v := range x {
		if v < m {
			n++
		}
	}
	return float64(n)
}

func hasDuplicate(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		if _, ok := seen[v]; ok {
			return 1
		}
		seen[v] = struct{}{}
	}
	return 0
}

func hasDuplicateMax(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return boolToFloat(numMaxima(x) >= 2)
}

func hasDuplicateMin(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return boolToFloat(numMinima(x) >= 2)
}

// kurtosis 调整后的 Fisher-Pearson 样本超额峰度 (G2)
// 需要 n >= 4 且方差非零，否则无定义
func kurtosis(x []float64) float64 {
	n := float64(len(x))
	if len(x) < 4 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	var m2, m4 float64
	for _, v := range x {
		d := v - m
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	if m2 == 0 {
		return math.NaN()
	}
	s2 := m2 / (n - 1) // 样本方差
	return n*(n+1)/((n-1)*(n-2)*(n-3))*m4/(s2*s2) - 3*(n-1)*(n-1)/((n-2)*(n-3))
}

// skewness 调整后的 Fisher-Pearson 样本偏度 (G1)
func skewness(x []float64) float64 {
	n := float64(len(x))
	if len(x) < 3 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	s := stat.StdDev(x, nil)
	if s == 0 {
		return math.NaN()
	}
	var m3 float64
	for _, v := range x {
		d := (v - m) / s
		m3 += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * m3
}

func length(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(len(x))
}

func percentageNonZeroValues(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	n := 0
	for _, v := range x {
		if v != 0 {
			n++
		}
	}
	return float64(n) / float64(len(x))
}

func maximum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Max(x)
}

func minimum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Min(x)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// crestFactor 峰值因子: max(|x|) / RMS(x)
func crestFactor(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var peak, sq float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sq += v * v
	}
	return peak / math.Sqrt(sq/float64(len(x)))
}

// percentageReoccurringValues 重复出现的不同取值占全部不同取值的比例
func percentageReoccurringValues(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	counts := valueCounts(x)
	reoccurring := 0
	for _, c := range counts {
		if c > 1 {
			reoccurring++
		}
	}
	return float64(reoccurring) / float64(len(counts))
}

// percentageReoccurringDatapoints 属于重复取值的数据点占全部数据点的比例
func percentageReoccurringDatapoints(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	counts := valueCounts(x)
	points := 0
	for _, c := range counts {
		if c > 1 {
			points += c
		}
	}
	return float64(points) / float64(len(x))
}

func numStates(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(len(valueCounts(x)))
}

// standardDeviation 样本标准差 (n-1)；单元素自由度为零，无定义
func standardDeviation(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

func absoluteSumOfChanges(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := 1; i < len(x); i++ {
		sum += math.Abs(x[i] - x[i-1])
	}
	return sum
}

// meanSecondDerivativeCentral 中心二阶差分的均值
func meanSecondDerivativeCentral(x []float64) float64 {
	if len(x) < 3 {
		return math.NaN()
	}
	var sum float64
	for i := 1; i < len(x)-1; i++ {
		sum += (x[i+1] - 2*x[i] + x[i-1]) / 2
	}
	return sum / float64(len(x)-2)
}

// 极值位置: 首/末次出现下标占序列长度的比例 (0-1)
func firstLocationOfMaximum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(argExtreme(x, true, true)) / float64(len(x))
}

func firstLocationOfMinimum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(argExtreme(x, false, true)) / float64(len(x))
}

func lastLocationOfMaximum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(argExtreme(x, true, false)+1) / float64(len(x))
}

func lastLocationOfMinimum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return float64(argExtreme(x, false, false)+1) / float64(len(x))
}

func numMaxima(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	max := floats.Max(x)
	n := 0
	for _, v := range x {
		if v == max {
			n++
		}
	}
	return float64(n)
}

func numMinima(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	min := floats.Min(x)
	n := 0
	for _, v := range x {
		if v == min {
			n++
		}
	}
	return float64(n)
}

func longestStrikeAboveMean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	return float64(longestRun(x, func(v float64) bool { return v > m }))
}

func longestStrikeBelowMean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	return float64(longestRun(x, func(v float64) bool { return v < m }))
}

func meanAbsChange(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return absoluteSumOfChanges(x) / float64(len(x)-1)
}

// meanChange 有符号增量的均值；求和可缩并为 (尾-首)/(n-1)
func meanChange(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return (x[len(x)-1] - x[0]) / float64(len(x)-1)
}

// numberCrossingMean 序列穿越自身均值的次数
// 穿越定义为相邻两点在均值两侧 (严格大于为一侧)
func numberCrossingMean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := stat.Mean(x, nil)
	n := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] > m) != (x[i] > m) {
			n++
		}
	}
	return float64(n)
}

// linearWeightedAverage 线性加权平均: 2/(n(n+1)) * Σ i*x_i, i=1..n
func linearWeightedAverage(x []float64) float64 {
	n := float64(len(x))
	if len(x) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, v := range x {
		sum += float64(i+1) * v
	}
	return 2 / (n * (n + 1)) * sum
}

// quadraticWeightedAverage 二次加权平均: 6/(n(n+1)(2n+1)) * Σ i²*x_i
func quadraticWeightedAverage(x []float64) float64 {
	n := float64(len(x))
	if len(x) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, v := range x {
		w := float64(i + 1)
		sum += w * w * v
	}
	return 6 / (n * (n + 1) * (2*n + 1)) * sum
}

// linearTrend 对 x 按下标做最小二乘拟合
// 支持参数 attr ∈ {slope, intercept}
func linearTrend(x []float64, p domain.Params) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	idx := make([]float64, len(x))
	for i := range idx {
		idx[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(idx, x, nil, false)
	attr, _ := p.String("attr")
	switch attr {
	case "slope":
		return beta
	case "intercept":
		return alpha
	default:
		return math.NaN()
	}
}

// sampleEntropy 样本熵 (m=2, r=0.2*总体标准差, 切比雪夫距离)
func sampleEntropy(x []float64) float64 {
	const m = 2
	n := len(x)
	if n < m+2 {
		return math.NaN()
	}
	for _, v := range x {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	mean := stat.Mean(x, nil)
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	r := 0.2 * math.Sqrt(sq/float64(n)) // 总体标准差

	b := float64(countTemplateMatches(x, m, r))
	a := float64(countTemplateMatches(x, m+1, r))
	if a == 0 || b == 0 {
		return math.NaN()
	}
	return -math.Log(a / b)
}

// countTemplateMatches 统计长度 m 的模板窗口间切比雪夫距离 ≤ r 的有序对数 (不含自配对)
func countTemplateMatches(x []float64, m int, r float64) int {
	n := len(x) - m + 1
	matches := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			ok := true
			for k := 0; k < m; k++ {
				if math.Abs(x[i+k]-x[j+k]) > r {
					ok = false
					break
				}
			}
			if ok {
				matches++
			}
		}
	}
	return matches
}

// cidCE 复杂度不变距离 (与自身)；normalize=true 时先做 z 规范化
func cidCE(x []float64, p domain.Params) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := x
	if p.Bool("normalize") {
		m := stat.Mean(x, nil)
		var sq float64
		for _, v := range x {
			d := v - m
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(len(x)))
		if sd == 0 {
			// 常数序列的规范化无定义，复杂度按零处理
			return 0
		}
		s = make([]float64, len(x))
		for i, v := range x {
			s[i] = (v - m) / sd
		}
	}
	var sum float64
	for i := 1; i < len(s); i++ {
		d := s[i] - s[i-1]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// --- helpers ---

func valueCounts(x []float64) map[float64]int {
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	return counts
}

// argExtreme 返回最大/最小值首次或末次出现的下标
func argExtreme(x []float64, wantMax, first bool) int {
	best := 0
	for i := 1; i < len(x); i++ {
		better := false
		if wantMax {
			better = x[i] > x[best]
		} else {
			better = x[i] < x[best]
		}
		if better || (!first && x[i] == x[best]) {
			best = i
		}
	}
	return best
}

func longestRun(x []float64, pred func(float64) bool) int {
	longest, run := 0, 0
	for _, v := range x {
		if pred(v) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}
