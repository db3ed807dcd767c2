package config

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_RequiresAddresses(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.IngressAddr = ""
	require.ErrorIs(t, cfg.Validate(), ErrIngressAddrRequired)

	cfg = Default()
	cfg.MetricsAddr = ""
	require.ErrorIs(t, cfg.Validate(), ErrMetricsAddrRequired)

	require.NoError(t, Default().Validate())
}

func TestConfig_MonitorConfig_OverridesOnlyWhenSet(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	cfg := Default()
	mc := cfg.MonitorConfig(clk)
	require.Equal(t, 4, mc.PeerRequiredMsgs)

	cfg.PeerRequiredMsgs = 7
	cfg.TickInterval = 2 * time.Second
	mc = cfg.MonitorConfig(clk)
	require.Equal(t, 7, mc.PeerRequiredMsgs)
	require.Equal(t, 2*time.Second, mc.TickInterval)
	require.Equal(t, clk, mc.Clock)
}
