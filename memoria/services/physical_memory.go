package services

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Bytes con los que se rellena un frame al asignarlo y al liberarlo, para que se note si
// alguien lee memoria que no inicializó o que ya no le pertenece.
const (
	junkOnAlloc = 0x05
	junkOnFree  = 0x01
)

// PhysicalMemory es la memoria de usuario simulada y su asignador de frames.
// Los frames empiezan en models.RAMBase.
type PhysicalMemory struct {
	mu         sync.Mutex
	ram        []byte
	freeFrames []bool
	freeCount  int
	release    func() error
}

func NewPhysicalMemory(size int) (*PhysicalMemory, error) {
	size -= size % models.PageSize
	if size < models.PageSize {
		return nil, fmt.Errorf("memoria de %d bytes: no entra ni un frame", size)
	}

	ram, release, err := allocRAM(size)
	if err != nil {
		return nil, fmt.Errorf("no se pudo reservar la memoria de usuario: %w", err)
	}

	frames := size / models.PageSize
	freeFrames := make([]bool, frames)
	for i := range freeFrames {
		freeFrames[i] = true
	}

	slog.Debug("Memoria de usuario inicializada", "tamaño", size, "frames", frames)
	return &PhysicalMemory{
		ram:        ram,
		freeFrames: freeFrames,
		freeCount:  frames,
		release:    release,
	}, nil
}

// Close devuelve la memoria reservada. Después de Close no se puede usar.
func (m *PhysicalMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.release == nil {
		return nil
	}
	err := m.release()
	m.release = nil
	m.ram = nil
	return err
}

// AllocFrame asigna el primer frame libre.
func (m *PhysicalMemory) AllocFrame() (models.PhysAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, free := range m.freeFrames {
		if !free {
			continue
		}
		m.freeFrames[i] = false
		m.freeCount--
		pa := models.RAMBase + models.PhysAddr(i*models.PageSize)
		fill(m.frame(i), junkOnAlloc)
		return pa, nil
	}
	return 0, ErrOutOfMemory
}

// FreeFrame devuelve un frame al asignador. Liberar una dirección inválida o un frame libre
// es un error del llamador y termina en panic.
func (m *PhysicalMemory) FreeFrame(pa models.PhysAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index("FreeFrame", pa)
	if m.freeFrames[i] {
		panic(fmt.Sprintf("FreeFrame: el frame %v ya estaba libre", pa))
	}
	fill(m.frame(i), junkOnFree)
	m.freeFrames[i] = true
	m.freeCount++
}

// Frame devuelve el contenido del frame. El slice apunta a la memoria real.
func (m *PhysicalMemory) Frame(pa models.PhysAddr) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.frame(m.index("Frame", pa))
}

// FreePages es la memoria libre medida en páginas.
func (m *PhysicalMemory) FreePages() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.freeCount
}

func (m *PhysicalMemory) TotalPages() int {
	return len(m.freeFrames)
}

func (m *PhysicalMemory) index(op string, pa models.PhysAddr) int {
	if pa%models.PageSize != 0 || pa < models.RAMBase {
		panic(fmt.Sprintf("%s: dirección física inválida %v", op, pa))
	}
	i := int((pa - models.RAMBase) / models.PageSize)
	if i >= len(m.freeFrames) {
		panic(fmt.Sprintf("%s: dirección física %v fuera de la memoria", op, pa))
	}
	return i
}

func (m *PhysicalMemory) frame(i int) []byte {
	start := i * models.PageSize
	return m.ram[start : start+models.PageSize : start+models.PageSize]
}

func fill(b []byte, value byte) {
	for i := range b {
		b[i] = value
	}
}
