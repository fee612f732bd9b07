package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowConfigDefaults(t *testing.T) {
	cfg := DefaultWindowConfig()
	require.Equal(t, 48*time.Hour, cfg.Lookback())
	require.Equal(t, time.Hour, cfg.CadenceDuration())
	require.NoError(t, validateWindowConfig(cfg))
}

func TestCadenceFallsBackOnGarbage(t *testing.T) {
	cfg := WindowConfig{LookbackDays: 2, Cadence: "sometimes"}
	require.Equal(t, time.Hour, cfg.CadenceDuration())
}

func TestValidateWindowConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     WindowConfig
		wantErr bool
	}{
		{"defaults", DefaultWindowConfig(), false},
		{"wide lookback slow cadence", WindowConfig{LookbackDays: 7, Cadence: "24h"}, false},
		{"zero lookback", WindowConfig{LookbackDays: 0, Cadence: "1h"}, true},
		{"unparseable cadence", WindowConfig{LookbackDays: 2, Cadence: "often"}, true},
		{"lookback under two cycles", WindowConfig{LookbackDays: 1, Cadence: "13h"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateWindowConfig(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStaticWindowConfig(t *testing.T) {
	holder := StaticWindowConfig(WindowConfig{LookbackDays: 3, Cadence: "30m"})
	require.Equal(t, 3*24*time.Hour, holder.Get().Lookback())
	require.Equal(t, 30*time.Minute, holder.Get().CadenceDuration())
}
