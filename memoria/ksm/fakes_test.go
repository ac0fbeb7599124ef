package ksm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

type fakeMemory struct {
	next   models.PhysAddr
	limit  int
	frames map[models.PhysAddr][]byte
	freed  map[models.PhysAddr]int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		next:   models.RAMBase,
		frames: make(map[models.PhysAddr][]byte),
		freed:  make(map[models.PhysAddr]int),
	}
}

func (m *fakeMemory) AllocFrame() (models.PhysAddr, error) {
	if m.limit > 0 && len(m.frames) >= m.limit {
		return 0, errors.New("sin frames libres")
	}
	pa := m.next
	m.next += models.PageSize
	m.frames[pa] = make([]byte, models.PageSize)
	return pa, nil
}

func (m *fakeMemory) FreeFrame(pa models.PhysAddr) {
	if _, ok := m.frames[pa]; !ok {
		panic(fmt.Sprintf("free de un frame no asignado: %v", pa))
	}
	delete(m.frames, pa)
	m.freed[pa]++
}

func (m *fakeMemory) Frame(pa models.PhysAddr) []byte {
	frame, ok := m.frames[pa]
	if !ok {
		panic(fmt.Sprintf("acceso a un frame no asignado: %v", pa))
	}
	return frame
}

type fakeTLB struct {
	flushes int
}

func (t *fakeTLB) Flush() { t.flushes++ }

type fakePageTable map[models.VirtAddr]*models.PTE

func (pt fakePageTable) Lookup(va models.VirtAddr) *models.PTE {
	return pt[va]
}

type fakeProc struct {
	pid   int
	state models.Estado
	pt    fakePageTable
	size  uint64
}

// pa devuelve el frame al que apunta la página n del proceso.
func (p *fakeProc) pa(n int) models.PhysAddr {
	return p.pte(n).Addr()
}

func (p *fakeProc) pte(n int) models.PTE {
	return *p.pt[models.VirtAddr(n*models.PageSize)]
}

type machine struct {
	mem    *fakeMemory
	tlb    *fakeTLB
	engine *Engine
	zero   models.PhysAddr
	procs  []*fakeProc
}

func newMachine(t *testing.T, opts ...Option) *machine {
	t.Helper()
	m := &machine{mem: newFakeMemory(), tlb: &fakeTLB{}}
	m.engine = New(m.mem, m.tlb, opts...)

	zero, err := m.mem.AllocFrame()
	require.NoError(t, err)
	require.NoError(t, m.engine.Bootstrap(zero))
	m.zero = zero
	return m
}

// spawn crea un proceso listo con una página privada y escribible por cada contenido.
func (m *machine) spawn(t *testing.T, pid int, pages ...[]byte) *fakeProc {
	t.Helper()
	p := &fakeProc{pid: pid, state: models.EstadoReady, pt: fakePageTable{}}
	for i, content := range pages {
		pa, err := m.mem.AllocFrame()
		require.NoError(t, err)
		copy(m.mem.Frame(pa), content)
		pte := models.MakePTE(pa, models.PteV|models.PteR|models.PteW|models.PteU)
		p.pt[models.VirtAddr(i*models.PageSize)] = &pte
	}
	p.size = uint64(len(pages) * models.PageSize)
	m.procs = append(m.procs, p)
	return p
}

func (m *machine) Snapshot() []Process {
	procs := make([]Process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, Process{PID: p.pid, State: p.state, Size: p.size, PageTable: p.pt})
	}
	return procs
}

func (m *machine) scan(t *testing.T, caller int) Stats {
	t.Helper()
	stats, err := m.engine.Scan(m, caller)
	require.NoError(t, err)
	require.NoError(t, m.engine.Verify())
	return stats
}

// fill arma una página con b repetido.
func fill(b byte) []byte {
	page := make([]byte, models.PageSize)
	for i := range page {
		page[i] = b
	}
	return page
}

// text arma una página con s al principio y ceros en el resto.
func text(s string) []byte {
	page := make([]byte, models.PageSize)
	copy(page, s)
	return page
}

func recoverConsistency(t *testing.T, fn func()) *ConsistencyError {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	cerr, ok := got.(*ConsistencyError)
	require.Truef(t, ok, "se esperaba un panic con *ConsistencyError, hubo %v", got)
	return cerr
}
