package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{MemorySize: 16 * PageSize, EntriesPerPage: 8, NumberOfLevels: 2, TlbEntries: -1}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "FIFO", cfg.TlbReplacement)
	assert.Zero(t, cfg.TlbEntries)
	assert.Equal(t, DefaultStableNodes, cfg.KsmStableNodes)
	assert.Equal(t, DefaultUnstableNodes, cfg.KsmUnstableNodes)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.Bootstrap())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"memoria chica", Config{MemorySize: PageSize, EntriesPerPage: 8, NumberOfLevels: 1}},
		{"sin niveles", Config{MemorySize: 4 * PageSize, EntriesPerPage: 8}},
		{"entradas no potencia de dos", Config{MemorySize: 4 * PageSize, EntriesPerPage: 6, NumberOfLevels: 1}},
		{"direcciones de más de 63 bits", Config{MemorySize: 4 * PageSize, EntriesPerPage: 512, NumberOfLevels: 7}},
		{"algoritmo desconocido", Config{MemorySize: 4 * PageSize, EntriesPerPage: 8, NumberOfLevels: 1, TlbReplacement: "CLOCK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestBootstrap_Disabled(t *testing.T) {
	disabled := false
	cfg := DefaultConfig()
	cfg.BootstrapProcesses = &disabled

	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Bootstrap())
}

func TestValidate_AcceptsWidestTable(t *testing.T) {
	// 5 niveles de 512 entradas: 57 bits de dirección.
	cfg := &Config{MemorySize: 4 * PageSize, EntriesPerPage: 512, NumberOfLevels: 5}

	assert.NoError(t, cfg.Validate())
}
