package services_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/renjie/featex/internal/core/domain"
	"github.com/renjie/featex/internal/core/services"
)

func rec(ts string, iavr, p float64) domain.Record {
	return domain.Record{
		Timestamp: ts,
		Values: map[string]float64{
			domain.ChannelIAVR: iavr,
			"P_kW":             p,
		},
	}
}

func TestExtractEndToEnd(t *testing.T) {
	// 一个 15 分钟窗口内 3 条记录，其中 1 条停机 (IAVR 0.2 <= 0.3)
	// 开启过滤后，矩阵应只有一行，且只反映 2 条运转中记录的统计量
	profile := threePhaseProfile(0.3)
	records := []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 0.5, 2.0),
		rec("2017-10-01T00:05:00.000+02", 0.2, 100.0), // off
		rec("2017-10-01T00:11:00.000+02", 1.5, 4.0),
	}

	e := services.NewExtractor(
		services.WithGranularity(domain.Granularity15Minutes),
		services.WithFiltering(true),
	)
	matrix, err := e.Extract(context.Background(), records, profile)
	require.NoError(t, err)

	require.Equal(t, []string{"2017-10-01T00:00:00.000+02"}, matrix.Windows)

	// weekday 为首列; 2017-10-01 是周日
	assert.Equal(t, "weekday", matrix.Columns[0])
	assert.Equal(t, 7.0, matrix.At(0, 0))

	// 配置的 7 个通道中只有 2 个出现在输入里，列集按画像顺序收窄
	perChannel := (len(matrix.Columns) - 1) / 2
	assert.Equal(t, 1+2*perChannel, len(matrix.Columns))
	assert.Equal(t, "IAVR_A__count_above_mean", matrix.Columns[1])

	row, ok := matrix.Row("2017-10-01T00:00:00.000+02")
	require.True(t, ok)

	meanIdx := matrix.ColumnIndex("P_kW__mean")
	require.GreaterOrEqual(t, meanIdx, 0)
	assert.InDelta(t, 3.0, row[meanIdx], 1e-12) // (2+4)/2, 停机行的 100 不参与

	lenIdx := matrix.ColumnIndex("P_kW__length")
	require.GreaterOrEqual(t, lenIdx, 0)
	assert.InDelta(t, 2.0, row[lenIdx], 1e-12)

	maxIdx := matrix.ColumnIndex("IAVR_A__maximum")
	require.GreaterOrEqual(t, maxIdx, 0)
	assert.InDelta(t, 1.5, row[maxIdx], 1e-12)
}

func TestExtractPreservesTemporalOrderWithinGroup(t *testing.T) {
	profile := threePhaseProfile(0.0)
	records := []domain.Record{
		rec("2017-10-02T10:00:00.000+02", 1, 1),
		rec("2017-10-02T10:01:00.000+02", 1, 3),
		rec("2017-10-02T10:02:00.000+02", 1, 2),
	}

	e := services.NewExtractor(services.WithGranularity(domain.Granularity15Minutes))
	matrix, err := e.Extract(context.Background(), records, profile)
	require.NoError(t, err)

	idx := matrix.ColumnIndex("P_kW__first_location_of_maximum")
	require.GreaterOrEqual(t, idx, 0)
	assert.InDelta(t, 1.0/3.0, matrix.At(0, idx), 1e-12)
}

func TestExtractRowsAscending(t *testing.T) {
	profile := threePhaseProfile(0.0)
	// 乱序输入，两个窗口
	records := []domain.Record{
		rec("2017-10-02T10:20:00.000+02", 1, 2),
		rec("2017-10-02T10:01:00.000+02", 1, 1),
		rec("2017-10-02T10:25:00.000+02", 1, 3),
	}

	e := services.NewExtractor(services.WithGranularity(domain.Granularity15Minutes))
	matrix, err := e.Extract(context.Background(), records, profile)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2017-10-02T10:00:00.000+02",
		"2017-10-02T10:15:00.000+02",
	}, matrix.Windows)
	// 周一
	assert.Equal(t, 1.0, matrix.At(0, 0))
	assert.Equal(t, 1.0, matrix.At(1, 0))
}

func TestExtractDeterministicAcrossWorkerCounts(t *testing.T) {
	profile := threePhaseProfile(0.0)
	var records []domain.Record
	minutes := []string{"00", "03", "17", "22", "31", "44", "46", "59"}
	for _, h := range []string{"09", "10", "11"} {
		for i, m := range minutes {
			ts := "2017-10-03T" + h + ":" + m + ":07.250+02"
			records = append(records, rec(ts, float64(i)+0.1, float64(i*i)))
		}
	}

	run := func(workers int) *domain.FeatureMatrix {
		e := services.NewExtractor(
			services.WithGranularity(domain.Granularity15Minutes),
			services.WithWorkers(workers),
		)
		m, err := e.Extract(context.Background(), records, profile)
		require.NoError(t, err)
		return m
	}

	single := run(1)
	parallel := run(8)

	require.Equal(t, single.Windows, parallel.Windows)
	require.Equal(t, single.Columns, parallel.Columns)
	for i := range single.Cells {
		for j := range single.Cells[i] {
			a, b := single.Cells[i][j], parallel.Cells[i][j]
			if math.IsNaN(a) {
				assert.True(t, math.IsNaN(b), "cell (%d,%d): %v vs %v", i, j, a, b)
				continue
			}
			assert.Equal(t, a, b, "cell (%d,%d)", i, j)
		}
	}
}

func TestExtractLogsRunIdentity(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := services.NewExtractor(
		services.WithGranularity(domain.Granularity15Minutes),
		services.WithLogger(zap.New(core).Sugar()),
	)

	info := domain.NewRunInfo("PickAndPlaceUnit_PhaseCount_3_x.csv")
	ctx := domain.NewContext(context.Background(), info)

	// 只有 2/7 个配置通道出现在输入里，必然产生 missing columns 日志
	_, err := e.Extract(ctx, []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 1, 1),
	}, threePhaseProfile(0))
	require.NoError(t, err)

	entries := logs.FilterMessageSnippet("missing columns").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, info.RunID, fields["run_id"])
	assert.Equal(t, info.Entity, fields["entity"])
}

func TestExtractCalculatorFailureYieldsNaNCell(t *testing.T) {
	// 违反纯函数约定的计算器: 单元格失败只记为 NaN，矩阵其余部分照常产出
	registry := domain.NewRegistry(
		domain.FeatureDefinition{
			Name: "mean",
			Calc: func(x []float64, _ domain.Params) float64 {
				var s float64
				for _, v := range x {
					s += v
				}
				return s / float64(len(x))
			},
		},
		domain.FeatureDefinition{
			Name: "broken",
			Calc: func([]float64, domain.Params) float64 { panic("calculator bug") },
		},
	)

	e := services.NewExtractor(
		services.WithGranularity(domain.Granularity15Minutes),
		services.WithRegistry(registry),
	)
	matrix, err := e.Extract(context.Background(), []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 1, 2),
		rec("2017-10-01T00:05:00.000+02", 1, 4),
	}, threePhaseProfile(0))
	require.NoError(t, err)
	require.Equal(t, []string{"2017-10-01T00:00:00.000+02"}, matrix.Windows)

	brokenIdx := matrix.ColumnIndex("P_kW__broken")
	require.GreaterOrEqual(t, brokenIdx, 0)
	assert.True(t, math.IsNaN(matrix.At(0, brokenIdx)))
	assert.True(t, math.IsNaN(matrix.At(0, matrix.ColumnIndex("IAVR_A__broken"))))

	// 失败单元格不影响同行其他单元格
	meanIdx := matrix.ColumnIndex("P_kW__mean")
	require.GreaterOrEqual(t, meanIdx, 0)
	assert.InDelta(t, 3.0, matrix.At(0, meanIdx), 1e-12)
	assert.Equal(t, 7.0, matrix.At(0, 0)) // weekday 列不受影响
}

func TestExtractMalformedTimestampIsFatal(t *testing.T) {
	profile := threePhaseProfile(0.0)
	records := []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 1, 1),
		{Timestamp: "01.10.2017 00:05", Values: map[string]float64{"P_kW": 2, domain.ChannelIAVR: 1}},
	}

	e := services.NewExtractor(services.WithGranularity(domain.Granularity15Minutes))
	_, err := e.Extract(context.Background(), records, profile)
	var fe *domain.FormatError
	require.Error(t, err)
	assert.True(t, errors.As(err, &fe))
}

func TestExtractSkipSignals(t *testing.T) {
	profile := threePhaseProfile(0.3)
	e := services.NewExtractor(
		services.WithGranularity(domain.Granularity15Minutes),
		services.WithFiltering(true),
	)

	// 没有输入记录
	_, err := e.Extract(context.Background(), nil, profile)
	assert.ErrorIs(t, err, domain.ErrEmptyAfterFilter)

	// 过滤后为空
	_, err = e.Extract(context.Background(), []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 0.1, 5),
	}, profile)
	assert.ErrorIs(t, err, domain.ErrEmptyAfterFilter)
}

func TestExtractUnsupportedGranularity(t *testing.T) {
	profile := threePhaseProfile(0.0)
	e := services.NewExtractor(services.WithGranularity(domain.Granularity("weekly")))
	_, err := e.Extract(context.Background(), []domain.Record{
		rec("2017-10-01T00:01:00.000+02", 1, 1),
	}, profile)
	assert.ErrorIs(t, err, domain.ErrUnsupportedGranularity)
}
