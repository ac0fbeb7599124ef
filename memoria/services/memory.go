package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/ksm"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

var (
	ErrOutOfMemory       = errors.New("no hay frames libres")
	ErrProcessNotFound   = errors.New("proceso inexistente")
	ErrSegmentationFault = errors.New("segmentation fault")
	ErrAddressOutOfRange = errors.New("dirección fuera del espacio del proceso")
	ErrInvalidState      = errors.New("estado de proceso desconocido")
)

// Memory es la máquina simulada completa: memoria física, TLB, procesos y el motor de KSM.
//
// memoryLock serializa todas las operaciones. El orden de locks es
// memoryLock -> lock del motor -> locks de la memoria física, la TLB y las listas.
type Memory struct {
	memoryLock sync.Mutex
	config     *models.Config
	phys       *PhysicalMemory
	tlb        *TLB
	engine     *ksm.Engine
	processes  ProcessTable
}

// NewMemory reserva la memoria de usuario, inicializa KSM con su página cero y, si el config
// lo pide, crea los procesos de arranque.
func NewMemory(config *models.Config) (*Memory, error) {
	phys, err := NewPhysicalMemory(config.MemorySize)
	if err != nil {
		return nil, err
	}

	slog.Debug("Memoria física reservada", "frames", phys.TotalPages(), "base", models.RAMBase)

	tlb := NewTLB(config.TlbEntries, config.TlbReplacement)
	m := &Memory{
		config: config,
		phys:   phys,
		tlb:    tlb,
		engine: ksm.New(phys, tlb,
			ksm.WithCapacity(config.KsmStableNodes, config.KsmUnstableNodes),
			ksm.WithContentCheck(config.KsmVerifyContent)),
	}

	if err := m.bootstrapZeroPage(); err != nil {
		phys.Close()
		return nil, err
	}

	m.processes.nextPID = models.InitPID
	if !config.Bootstrap() {
		m.processes.nextPID = models.FileServerPID + 1
		return m, nil
	}
	for _, name := range []string{"init", "fileserver"} {
		p, err := m.CreateProcess(name, models.PageSize)
		if err != nil {
			phys.Close()
			return nil, fmt.Errorf("no se pudo crear el proceso %s: %w", name, err)
		}
		if err := m.SetState(p.PID, models.EstadoBlocked); err != nil {
			phys.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Memory) bootstrapZeroPage() error {
	zero, err := m.phys.AllocFrame()
	if err != nil {
		return fmt.Errorf("no hay lugar para la página cero: %w", err)
	}
	clear(m.phys.Frame(zero))
	return m.engine.Bootstrap(zero)
}

func (m *Memory) Close() error {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	return m.phys.Close()
}

func (m *Memory) Config() *models.Config {
	return m.config
}

// FreePages es la memoria libre en páginas.
func (m *Memory) FreePages() int {
	return m.phys.FreePages()
}

// Nodes es la vista de depuración del registro de KSM.
func (m *Memory) Nodes() models.NodesResponse {
	return m.engine.Nodes()
}

// VerifyKsm revisa los invariantes del registro de KSM.
func (m *Memory) VerifyKsm() error {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	return m.engine.Verify()
}
