package models

import (
	"errors"
	"fmt"
	"math/bits"
)

type Config struct {
	PortMemory         int    `json:"port_memory"`
	MemorySize         int    `json:"memory_size"`
	EntriesPerPage     int    `json:"entries_per_page"`
	NumberOfLevels     int    `json:"number_of_levels"`
	TlbEntries         int    `json:"tlb_entries"`
	TlbReplacement     string `json:"tlb_replacement"`
	KsmStableNodes     int    `json:"ksm_stable_nodes"`
	KsmUnstableNodes   int    `json:"ksm_unstable_nodes"`
	KsmVerifyContent   bool   `json:"ksm_verify_content"`
	BootstrapProcesses *bool  `json:"bootstrap_processes,omitempty"`
	LogLevel           string `json:"log_level"`
	DumpPath           string `json:"dump_path"`
}

const (
	DefaultStableNodes   = 1024
	DefaultUnstableNodes = 8192
)

var MemoryConfig *Config

// DefaultConfig es la configuración que usan los tests y la demo de ksmctl.
func DefaultConfig() *Config {
	cfg := &Config{
		PortMemory:     8002,
		MemorySize:     4 * 1024 * 1024,
		EntriesPerPage: 512,
		NumberOfLevels: 3,
		TlbEntries:     16,
		TlbReplacement: "LRU",
		LogLevel:       "INFO",
		DumpPath:       "./dump_files/",
	}
	_ = cfg.Validate()
	return cfg
}

// Validate completa los valores por defecto y rechaza formas de memoria imposibles.
func (c *Config) Validate() error {
	if c.MemorySize < 2*PageSize {
		return fmt.Errorf("memory_size %d: se necesitan al menos dos páginas de %d bytes", c.MemorySize, PageSize)
	}
	if c.NumberOfLevels <= 0 {
		return errors.New("number_of_levels debe ser positivo")
	}
	if c.EntriesPerPage <= 1 || c.EntriesPerPage&(c.EntriesPerPage-1) != 0 {
		return fmt.Errorf("entries_per_page %d debe ser potencia de dos", c.EntriesPerPage)
	}
	// MaxVA de la tabla de páginas tiene que entrar en un uint64.
	if width := c.NumberOfLevels*bits.TrailingZeros(uint(c.EntriesPerPage)) + PageShift; width > 63 {
		return fmt.Errorf("%d niveles de %d entradas necesitan direcciones de %d bits, el máximo es 63",
			c.NumberOfLevels, c.EntriesPerPage, width)
	}
	if c.TlbEntries < 0 {
		c.TlbEntries = 0
	}
	switch c.TlbReplacement {
	case "":
		c.TlbReplacement = "FIFO"
	case "FIFO", "LRU":
	default:
		return fmt.Errorf("tlb_replacement %q desconocido", c.TlbReplacement)
	}
	if c.KsmStableNodes <= 0 {
		c.KsmStableNodes = DefaultStableNodes
	}
	if c.KsmUnstableNodes <= 0 {
		c.KsmUnstableNodes = DefaultUnstableNodes
	}
	if c.BootstrapProcesses == nil {
		enabled := true
		c.BootstrapProcesses = &enabled
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	return nil
}

// Bootstrap indica si al arrancar se crean los procesos init y fileserver.
func (c *Config) Bootstrap() bool {
	return c.BootstrapProcesses == nil || *c.BootstrapProcesses
}
