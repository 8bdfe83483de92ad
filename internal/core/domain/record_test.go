package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/featex/internal/core/domain"
)

func TestChannelsForPhase(t *testing.T) {
	two, err := domain.ChannelsForPhase(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"V1_V", "F_Hz", "I1_A", "P_kW", "Q_kvar", "S_kVA", "L1_F"}, two)

	three, err := domain.ChannelsForPhase(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VAVR_V", "F_Hz", "IAVR_A", "P_kW", "Q_kvar", "S_kVA", "L_F"}, three)

	_, err = domain.ChannelsForPhase(1)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestThresholdTableDefault(t *testing.T) {
	table := domain.ThresholdTable{
		Default:   0.0,
		Overrides: map[string]float64{"PickAndPlaceUnit": 0.3},
	}
	assert.Equal(t, 0.3, table.Get("PickAndPlaceUnit"))
	assert.Equal(t, 0.0, table.Get("ChipPress"))
	assert.Equal(t, 0.0, table.Get(""))
}

func TestResolveProfile(t *testing.T) {
	table := domain.ThresholdTable{Overrides: map[string]float64{"PickAndPlaceUnit": 0.3}}

	p, err := domain.ResolveProfile("PickAndPlaceUnit_PhaseCount_3_geq_2017-10-01_lt_2018-01-01.csv", table)
	require.NoError(t, err)
	assert.Equal(t, "PickAndPlaceUnit", p.MachineID)
	assert.Equal(t, 3, p.PhaseCount)
	assert.Equal(t, 0.3, p.OffThreshold)
	assert.Contains(t, p.Channels, "IAVR_A")

	// 目录前缀不影响解析
	p, err = domain.ResolveProfile("hipe/ChipPress_PhaseCount_2_geq_2017-10-01_lt_2018-01-01.csv", table)
	require.NoError(t, err)
	assert.Equal(t, "ChipPress", p.MachineID)
	assert.Equal(t, 2, p.PhaseCount)
	assert.Equal(t, 0.0, p.OffThreshold)
	assert.Contains(t, p.Channels, "I1_A")

	_, err = domain.ResolveProfile("bogus.csv", table)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = domain.ResolveProfile("Machine_PhaseCount_four_geq.csv", table)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
