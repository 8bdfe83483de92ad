package domain

import "math"

// FeatureMatrix 特征矩阵
// 行键为窗口标识 (升序)，列为 weekday + 各 (通道, 特征, 参数集) 组合
// 单元格为 float64，NaN 表示"无值"哨兵
// 构建完成后不可变；要么完整产出，要么不产出
type FeatureMatrix struct {
	Columns []string
	Windows []string
	Cells   [][]float64

	rowIndex map[string]int
}

// NewFeatureMatrix 预分配矩阵，所有单元格初始化为 NaN
func NewFeatureMatrix(windows, columns []string) *FeatureMatrix {
	cells := make([][]float64, len(windows))
	rowIndex := make(map[string]int, len(windows))
	for i, w := range windows {
		row := make([]float64, len(columns))
		for j := range row {
			row[j] = math.NaN()
		}
		cells[i] = row
		rowIndex[w] = i
	}
	return &FeatureMatrix{
		Columns:  columns,
		Windows:  windows,
		Cells:    cells,
		rowIndex: rowIndex,
	}
}

// Set 写入单元格
func (m *FeatureMatrix) Set(row, col int, v float64) {
	m.Cells[row][col] = v
}

// At 读取单元格
func (m *FeatureMatrix) At(row, col int) float64 {
	return m.Cells[row][col]
}

// Row 按窗口标识取整行
func (m *FeatureMatrix) Row(window string) ([]float64, bool) {
	i, ok := m.rowIndex[window]
	if !ok {
		return nil, false
	}
	return m.Cells[i], true
}

// ColumnIndex 按列名取下标，不存在时返回 -1
func (m *FeatureMatrix) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
