package services

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Varios procesos crean, escriben, forkean, escanean y terminan a la vez sobre la misma memoria.
// Pensado para correr con -race: el registro tiene que quedar consistente y todos los frames
// tienen que volver.
func TestMemory_ConcurrentLifecycleWithKsm(t *testing.T) {
	m := newTestMemory(t, func(c *models.Config) { c.MemorySize = 128 * models.PageSize })
	baseline := m.FreePages()

	const workers, rounds = 4, 30
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := lifecycleRound(m, fmt.Sprintf("w%d-r%d", w, i)); err != nil {
					errs <- fmt.Errorf("worker %d, ronda %d: %w", w, i, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	require.NoError(t, m.VerifyKsm())
	assert.Equal(t, baseline, m.FreePages())
	nodes := m.Nodes()
	require.Len(t, nodes.Stable, 1)
	assert.True(t, nodes.Stable[0].Zero)
	assert.Empty(t, nodes.Unstable)
}

func lifecycleRound(m *Memory, tag string) error {
	a, err := m.CreateProcess(tag, 2*models.PageSize)
	if err != nil {
		return err
	}
	if err := m.Write(a.PID, 0, []byte("igual en todos")); err != nil {
		return err
	}
	if err := m.Write(a.PID, models.PageSize, []byte(tag)); err != nil {
		return err
	}
	b, err := m.Fork(a.PID)
	if err != nil {
		return err
	}

	if _, err := m.Ksm(models.KsmRequest{PID: a.PID}); err != nil {
		return err
	}
	m.Nodes()

	if err := m.Write(b.PID, 0, []byte("otra")); err != nil {
		return err
	}
	got, err := m.Read(b.PID, models.PageSize, len(tag))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, []byte(tag)) {
		return fmt.Errorf("PID %d leyó %q en vez de %q", b.PID, got, tag)
	}
	got, err = m.Read(a.PID, 0, 5)
	if err != nil {
		return err
	}
	if string(got) != "igual" {
		return fmt.Errorf("PID %d leyó %q en vez de \"igual\"", a.PID, got)
	}

	if err := m.Exit(a.PID); err != nil {
		return err
	}
	return m.Exit(b.PID)
}
