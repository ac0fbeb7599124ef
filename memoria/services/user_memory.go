package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/ksm"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Read lee size bytes del espacio del proceso a partir de va.
func (m *Memory) Read(pid int, va models.VirtAddr, size int) ([]byte, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return nil, err
	}
	if err := checkRange(p, va, size); err != nil {
		return nil, err
	}

	data := make([]byte, 0, size)
	for len(data) < size {
		cur := va + models.VirtAddr(len(data))
		pa, err := m.translate(p, cur, false)
		if err != nil {
			return nil, err
		}
		offset := int(cur % models.PageSize)
		n := min(size-len(data), models.PageSize-offset)
		data = append(data, m.phys.Frame(models.FrameRoundDown(pa))[offset:offset+n]...)
	}

	p.Metrics.Reads++
	slog.Info(fmt.Sprintf("## PID: %d - Lectura - Dir. Virtual: %v - Tamaño: %d", pid, va, size))
	return data, nil
}

// Write escribe data en el espacio del proceso a partir de va. Una escritura sobre una
// página compartida por KSM la vuelve privada antes de escribir.
func (m *Memory) Write(pid int, va models.VirtAddr, data []byte) error {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return err
	}
	if err := checkRange(p, va, len(data)); err != nil {
		return err
	}
	if err := m.write(p, va, data); err != nil {
		return err
	}

	p.Metrics.Writes++
	slog.Info(fmt.Sprintf("## PID: %d - Escritura - Dir. Virtual: %v - Tamaño: %d", pid, va, len(data)))
	return nil
}

// checkRange rechaza accesos que no entran en el espacio del proceso antes de reservar o tocar nada.
func checkRange(p *Process, va models.VirtAddr, size int) error {
	if size < 0 {
		return fmt.Errorf("%w: tamaño %d", ErrAddressOutOfRange, size)
	}
	limit := models.PageRoundUp(p.Size)
	if uint64(size) > limit || uint64(va) > limit-uint64(size) {
		return fmt.Errorf("%w: PID %d - %v + %d fuera del proceso (tamaño %d)", ErrSegmentationFault, p.PID, va, size, p.Size)
	}
	return nil
}

func (m *Memory) write(p *Process, va models.VirtAddr, data []byte) error {
	written := 0
	for written < len(data) {
		cur := va + models.VirtAddr(written)
		pa, err := m.translate(p, cur, true)
		if err != nil {
			return err
		}
		offset := int(cur % models.PageSize)
		n := copy(m.phys.Frame(models.FrameRoundDown(pa))[offset:], data[written:])
		written += n
	}
	return nil
}

// translate resuelve va a una dirección física pasando por la TLB. Si la escritura cae en
// una página sin permiso se resuelve el fallo con KSM; si KSM no la reconoce es un
// segmentation fault.
func (m *Memory) translate(p *Process, va models.VirtAddr, write bool) (models.PhysAddr, error) {
	page := uint64(va) / models.PageSize
	offset := models.PhysAddr(va % models.PageSize)

	if entry, hit := m.tlb.Search(p.PID, page); hit && (!write || entry.Writable) {
		slog.Debug(fmt.Sprintf("PID: %d - TLB HIT - Pagina: %d", p.PID, page))
		return entry.Frame + offset, nil
	}
	slog.Debug(fmt.Sprintf("PID: %d - TLB MISS - Pagina: %d", p.PID, page))

	if uint64(va) >= models.PageRoundUp(p.Size) {
		return 0, fmt.Errorf("%w: PID %d - %v (tamaño %d)", ErrSegmentationFault, p.PID, va, p.Size)
	}

	p.Metrics.PageTableAccesses++
	pte := p.PageTable.Lookup(va)
	if pte == nil || !pte.Valid() || !pte.User() {
		return 0, fmt.Errorf("%w: PID %d - %v no mapeada", ErrSegmentationFault, p.PID, va)
	}

	if write && !pte.Writable() {
		err := m.engine.CopyOnWrite(p.PageTable, p.PID, va)
		if errors.Is(err, ksm.ErrNotCopyOnWrite) {
			return 0, fmt.Errorf("%w: PID %d - escritura en %v de solo lectura", ErrSegmentationFault, p.PID, va)
		}
		if err != nil {
			return 0, err
		}
		p.Metrics.CopyOnWrites++
		pte = p.PageTable.Lookup(va)
	}

	m.tlb.Insert(p.PID, page, pte.Addr(), pte.Writable())
	return pte.Addr() + offset, nil
}

// PTE devuelve la entrada de va sin pasar por la TLB.
func (m *Memory) PTE(pid int, va models.VirtAddr) (models.PTE, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return 0, err
	}
	pte := p.PageTable.Lookup(va)
	if pte == nil || !pte.Valid() {
		return 0, fmt.Errorf("%w: PID %d - %v no mapeada", ErrSegmentationFault, pid, va)
	}
	return *pte, nil
}
