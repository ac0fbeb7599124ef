package services

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

func newTestMemory(t *testing.T, mutate ...func(*models.Config)) *Memory {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.MemorySize = 64 * models.PageSize
	cfg.DumpPath = t.TempDir()
	for _, f := range mutate {
		f(cfg)
	}
	require.NoError(t, cfg.Validate())

	m, err := NewMemory(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func create(t *testing.T, m *Memory, pages int) int {
	t.Helper()
	p, err := m.CreateProcess("test", pages*models.PageSize)
	require.NoError(t, err)
	return p.PID
}

func ksmPass(t *testing.T, m *Memory, caller int) models.KsmResponse {
	t.Helper()
	resp, err := m.Ksm(models.KsmRequest{PID: caller})
	require.NoError(t, err)
	require.NoError(t, m.VerifyKsm())
	return resp
}

func pteOf(t *testing.T, m *Memory, pid int, va models.VirtAddr) models.PTE {
	t.Helper()
	pte, err := m.PTE(pid, va)
	require.NoError(t, err)
	return pte
}

func TestNewMemory_BootstrapProcesses(t *testing.T) {
	m := newTestMemory(t)

	for _, pid := range []int{models.InitPID, models.FileServerPID} {
		p, err := m.Process(pid)
		require.NoError(t, err)
		assert.Equal(t, models.EstadoBlocked, p.State)
		assert.Equal(t, uint64(models.PageSize), p.Size)
	}
	// página cero + una página por proceso de arranque
	assert.Equal(t, 64-3, m.FreePages())

	nodes := m.Nodes()
	require.Len(t, nodes.Stable, 1)
	assert.True(t, nodes.Stable[0].Zero)
}

func TestNewMemory_WithoutBootstrapProcesses(t *testing.T) {
	m := newTestMemory(t, func(c *models.Config) {
		disabled := false
		c.BootstrapProcesses = &disabled
	})

	_, err := m.Process(models.InitPID)
	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.Equal(t, models.FileServerPID+1, create(t, m, 1))
}

func TestReadWrite_AcrossPages(t *testing.T) {
	m := newTestMemory(t)
	pid := create(t, m, 2)
	data := []byte("cruza el borde de la página")
	va := models.VirtAddr(models.PageSize - 5)

	require.NoError(t, m.Write(pid, va, data))

	got, err := m.Read(pid, va, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadWrite_OutsideProcessSegfaults(t *testing.T) {
	m := newTestMemory(t)
	pid := create(t, m, 1)

	assert.ErrorIs(t, m.Write(pid, models.PageSize, []byte("x")), ErrSegmentationFault)
	_, err := m.Read(pid, models.PageSize-1, 2)
	assert.ErrorIs(t, err, ErrSegmentationFault)
	assert.ErrorIs(t, m.Write(42, 0, []byte("x")), ErrProcessNotFound)
}

func TestReadWrite_RangeIsCheckedBeforeAllocating(t *testing.T) {
	m := newTestMemory(t)
	pid := create(t, m, 1)

	_, err := m.Read(pid, 0, 1<<40)
	assert.ErrorIs(t, err, ErrSegmentationFault)
	_, err = m.Read(pid, ^models.VirtAddr(0), 2)
	assert.ErrorIs(t, err, ErrSegmentationFault)
	_, err = m.Read(pid, 0, -1)
	assert.ErrorIs(t, err, ErrAddressOutOfRange)

	// una escritura que no entra no toca la parte que sí entraba
	assert.ErrorIs(t, m.Write(pid, models.PageSize-2, []byte("xyz")), ErrSegmentationFault)
	got, err := m.Read(pid, models.PageSize-2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got)
}

// A escribe "D", B es un fork de A. Tras un escaneo ambas páginas apuntan al mismo frame;
// cuando A escribe "d" vuelve a tener su página y B sigue leyendo "D".
func TestKsm_ForkScenario(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 2)
	require.NoError(t, m.Write(a, 0, []byte("D")))
	child, err := m.Fork(a)
	require.NoError(t, err)
	b := child.PID
	caller := create(t, m, 1)

	resp := ksmPass(t, m, caller)

	assert.Equal(t, 4, resp.Scanned)
	assert.Equal(t, 3, resp.Merged)
	assert.Equal(t, m.FreePages(), resp.FreeMem)
	pteA, pteB := pteOf(t, m, a, 0), pteOf(t, m, b, 0)
	assert.Equal(t, pteA.Addr(), pteB.Addr())
	assert.True(t, pteA.CopyOnWrite())
	assert.True(t, pteB.CopyOnWrite())

	require.NoError(t, m.Write(a, 0, []byte("d")))
	resp = ksmPass(t, m, caller)

	assert.Zero(t, resp.Merged)
	assert.NotEqual(t, pteOf(t, m, a, 0).Addr(), pteOf(t, m, b, 0).Addr())
	assert.True(t, pteOf(t, m, a, 0).Writable())
	gotA, err := m.Read(a, 0, 1)
	require.NoError(t, err)
	gotB, err := m.Read(b, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "d", string(gotA))
	assert.Equal(t, "D", string(gotB))
}

func TestKsm_SecondPassIsIdempotent(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 3)
	require.NoError(t, m.Write(a, 0, []byte("igual")))
	_, err := m.Fork(a)
	require.NoError(t, err)
	caller := create(t, m, 1)

	first := ksmPass(t, m, caller)
	require.Positive(t, first.Merged)
	second := ksmPass(t, m, caller)

	assert.Equal(t, first.Scanned, second.Scanned)
	assert.Zero(t, second.Merged)
	assert.Equal(t, first.FreeMem, second.FreeMem)
}

func TestKsm_CopiesCountersToCaller(t *testing.T) {
	m := newTestMemory(t)
	create(t, m, 2)
	caller := create(t, m, 1)
	scannedAddr, mergedAddr := models.VirtAddr(0), models.VirtAddr(4)

	resp, err := m.Ksm(models.KsmRequest{PID: caller, ScannedAddr: &scannedAddr, MergedAddr: &mergedAddr})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Scanned)
	require.Equal(t, 2, resp.Merged)

	raw, err := m.Read(caller, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[0:4]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[4:8]))
}

func TestKsm_CopyOutToSharedCallerPage(t *testing.T) {
	m := newTestMemory(t)
	first := create(t, m, 1)
	second := create(t, m, 1)
	ksmPass(t, m, first)
	require.Equal(t, m.Nodes().Stable[0].PA, pteOf(t, m, second, 0).Addr())

	// second quedó mapeado a la página cero: el copyout tiene que pasar por copy-on-write.
	out := models.VirtAddr(0)
	resp, err := m.Ksm(models.KsmRequest{PID: second, ScannedAddr: &out})
	require.NoError(t, err)

	raw, err := m.Read(second, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(resp.Scanned), binary.LittleEndian.Uint32(raw))
	assert.NotEqual(t, m.Nodes().Stable[0].PA, pteOf(t, m, second, 0).Addr())
}

func TestKsm_UnknownCaller(t *testing.T) {
	m := newTestMemory(t)

	_, err := m.Ksm(models.KsmRequest{PID: 99})
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestKsm_SkipsRunningProcesses(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 1)
	require.NoError(t, m.SetState(a, models.EstadoExecuting))
	caller := create(t, m, 1)

	resp := ksmPass(t, m, caller)
	assert.Zero(t, resp.Scanned)

	assert.ErrorIs(t, m.SetState(a, "ZOMBIE"), ErrInvalidState)
}

func TestExit_ReleasesSharedFramesOnce(t *testing.T) {
	m := newTestMemory(t)
	baseline := m.FreePages()

	a := create(t, m, 3)
	require.NoError(t, m.Write(a, 0, []byte("compartida")))
	require.NoError(t, m.Write(a, 2*models.PageSize, []byte("otra")))
	child, err := m.Fork(a)
	require.NoError(t, err)
	caller := create(t, m, 1)
	ksmPass(t, m, caller)
	require.NoError(t, m.Write(child.PID, 2*models.PageSize, []byte("OTRA")))
	ksmPass(t, m, caller)

	require.NoError(t, m.Exit(a))
	require.NoError(t, m.VerifyKsm())
	require.NoError(t, m.Exit(child.PID))
	require.NoError(t, m.Exit(caller))

	assert.Equal(t, baseline, m.FreePages())
	nodes := m.Nodes()
	require.Len(t, nodes.Stable, 1)
	assert.Equal(t, 1, nodes.Stable[0].RefCount)
	assert.Empty(t, nodes.Unstable)
	assert.ErrorIs(t, m.Exit(a), ErrProcessNotFound)
}

func TestGrow_ShrinkReleasesThroughKsm(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 3)
	caller := create(t, m, 1)
	require.Equal(t, 3, ksmPass(t, m, caller).Merged)
	require.Equal(t, 4, m.Nodes().Stable[0].RefCount)
	free := m.FreePages()

	size, err := m.Grow(a, -2*models.PageSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(models.PageSize), size)
	assert.Equal(t, 2, m.Nodes().Stable[0].RefCount)
	assert.Equal(t, free, m.FreePages())

	size, err = m.Grow(a, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(models.PageSize+10), size)
	got, err := m.Read(a, models.PageSize, 10)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), got)

	_, err = m.Grow(a, -10*models.PageSize)
	assert.ErrorIs(t, err, ErrAddressOutOfRange)
}

func TestCreateProcess_OutOfMemoryRollsBack(t *testing.T) {
	m := newTestMemory(t)
	free := m.FreePages()

	_, err := m.CreateProcess("enorme", (free+1)*models.PageSize)

	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, free, m.FreePages())
}

func TestFork_SharedPageIsPrivateInChild(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 1)
	require.NoError(t, m.Write(a, 0, []byte("x")))
	_, err := m.Fork(a)
	require.NoError(t, err)
	caller := create(t, m, 1)
	ksmPass(t, m, caller)
	require.True(t, pteOf(t, m, a, 0).CopyOnWrite())

	grandchild, err := m.Fork(a)
	require.NoError(t, err)

	pte := pteOf(t, m, grandchild.PID, 0)
	assert.True(t, pte.Writable())
	assert.False(t, pte.CopyOnWrite())
	assert.NotEqual(t, pteOf(t, m, a, 0).Addr(), pte.Addr())
	got, err := m.Read(grandchild.PID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestDump_WritesProcessImage(t *testing.T) {
	m := newTestMemory(t)
	a := create(t, m, 2)
	require.NoError(t, m.Write(a, models.PageSize, []byte("hola")))

	path, err := m.Dump(a)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, content, 2*models.PageSize)
	assert.Equal(t, "hola", string(content[models.PageSize:models.PageSize+4]))
	assert.Equal(t, make([]byte, models.PageSize), content[:models.PageSize])
}
