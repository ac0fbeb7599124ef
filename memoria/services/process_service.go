package services

import (
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

const userPerm = models.PteR | models.PteW | models.PteU

// CreateProcess crea un proceso listo con size bytes de memoria en cero.
func (m *Memory) CreateProcess(name string, size int) (*Process, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	if size < 0 {
		return nil, fmt.Errorf("%w: tamaño %d", ErrAddressOutOfRange, size)
	}

	p := &Process{
		Name:      name,
		State:     models.EstadoReady,
		PageTable: NewPageTable(m.config.NumberOfLevels, m.config.EntriesPerPage),
	}
	m.processes.add(p)

	if err := m.growLocked(p, int64(size)); err != nil {
		m.exitLocked(p)
		slog.Error("No se pudo crear el proceso", "nombre", name, "tamaño", size, "error", err)
		return nil, err
	}

	slog.Info(fmt.Sprintf("## PID: %d - Proceso Creado - Tamaño: %d", p.PID, size))
	return p, nil
}

// Fork crea un hijo con una copia privada de cada página del padre. Las páginas compartidas
// por KSM quedan escribibles en el hijo.
func (m *Memory) Fork(pid int) (*Process, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	parent, err := m.processes.get(pid)
	if err != nil {
		return nil, err
	}

	child := &Process{
		Name:      parent.Name,
		Parent:    parent.PID,
		State:     models.EstadoReady,
		Size:      parent.Size,
		PageTable: NewPageTable(m.config.NumberOfLevels, m.config.EntriesPerPage),
	}
	m.processes.add(child)

	var copyErr error
	parent.PageTable.Walk(func(va models.VirtAddr, pte *models.PTE) {
		if copyErr != nil || !pte.Valid() {
			return
		}
		copyErr = m.copyPage(child, va, *pte)
	})
	if copyErr != nil {
		m.exitLocked(child)
		return nil, copyErr
	}

	slog.Info(fmt.Sprintf("## PID: %d - Fork - Hijo: %d", parent.PID, child.PID))
	return child, nil
}

func (m *Memory) copyPage(child *Process, va models.VirtAddr, pte models.PTE) error {
	pa, err := m.phys.AllocFrame()
	if err != nil {
		return err
	}
	copy(m.phys.Frame(pa), m.phys.Frame(pte.Addr()))

	flags := pte.Flags()
	if pte.CopyOnWrite() {
		flags = flags&^models.PteCOW | models.PteW
	}
	if err := child.PageTable.Map(va, pa, flags); err != nil {
		m.phys.FreeFrame(pa)
		return err
	}
	return nil
}

// Grow cambia el tamaño del proceso en delta bytes (sbrk). Las páginas nuevas vienen en cero;
// las que sobran se liberan a través de KSM.
func (m *Memory) Grow(pid int, delta int) (uint64, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return 0, err
	}

	newSize := int64(p.Size) + int64(delta)
	if newSize < 0 {
		return p.Size, fmt.Errorf("%w: sbrk(%d) con tamaño %d", ErrAddressOutOfRange, delta, p.Size)
	}
	if err := m.growLocked(p, newSize); err != nil {
		return p.Size, err
	}
	return p.Size, nil
}

func (m *Memory) growLocked(p *Process, newSize int64) error {
	if uint64(newSize) > uint64(p.PageTable.MaxVA()) {
		return fmt.Errorf("%w: tamaño %d", ErrAddressOutOfRange, newSize)
	}

	oldTop := models.VirtAddr(models.PageRoundUp(p.Size))
	newTop := models.VirtAddr(models.PageRoundUp(uint64(newSize)))

	if newTop < oldTop {
		if err := m.freeRange(p, newTop, oldTop); err != nil {
			return err
		}
		m.tlb.FlushPID(p.PID)
		p.Size = uint64(newSize)
		return nil
	}

	for va := oldTop; va < newTop; va += models.PageSize {
		if err := m.mapZeroPage(p, va); err != nil {
			if freeErr := m.freeRange(p, oldTop, va); freeErr != nil {
				slog.Error("No se pudo deshacer el crecimiento", "pid", p.PID, "error", freeErr)
			}
			return err
		}
	}
	p.Size = uint64(newSize)
	return nil
}

func (m *Memory) mapZeroPage(p *Process, va models.VirtAddr) error {
	pa, err := m.phys.AllocFrame()
	if err != nil {
		return err
	}
	clear(m.phys.Frame(pa))
	if err := p.PageTable.Map(va, pa, userPerm); err != nil {
		m.phys.FreeFrame(pa)
		return err
	}
	return nil
}

// freeRange desmapea [from, to) devolviendo cada frame a través de KSM.
func (m *Memory) freeRange(p *Process, from, to models.VirtAddr) error {
	for va := from; va < to; va += models.PageSize {
		if err := m.unmapPage(p, va); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) unmapPage(p *Process, va models.VirtAddr) error {
	pte := p.PageTable.Lookup(va)
	if pte == nil {
		return nil
	}
	if pte.Valid() {
		if err := m.engine.Free(pte.Addr(), p.PID, va); err != nil {
			return err
		}
	}
	p.PageTable.Unmap(va)
	return nil
}

// Exit libera toda la memoria del proceso y lo saca de la tabla.
func (m *Memory) Exit(pid int) error {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return err
	}
	if err := m.exitLocked(p); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("## PID: %d - Proceso Destruido - Métricas - Acc.T.Pag: %d; Lec.Mem.: %d; Esc.Mem.: %d; COW: %d",
		pid, p.Metrics.PageTableAccesses, p.Metrics.Reads, p.Metrics.Writes, p.Metrics.CopyOnWrites))
	return nil
}

func (m *Memory) exitLocked(p *Process) error {
	var mapped []models.VirtAddr
	p.PageTable.Walk(func(va models.VirtAddr, _ *models.PTE) {
		mapped = append(mapped, va)
	})
	for _, va := range mapped {
		if err := m.unmapPage(p, va); err != nil {
			return err
		}
	}

	m.tlb.FlushPID(p.PID)
	p.State = models.EstadoExit
	m.processes.remove(p.PID)
	return nil
}

func (m *Memory) SetState(pid int, state models.Estado) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return err
	}
	slog.Debug("Cambio de estado", "pid", pid, "anterior", p.State, "nuevo", state)
	p.State = state
	return nil
}

// Process devuelve una copia de los datos del proceso.
func (m *Memory) Process(pid int) (Process, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return Process{}, err
	}
	return *p, nil
}
