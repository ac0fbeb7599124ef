package ksm

import (
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Free reemplaza a la liberación directa de un frame mapeado por un proceso. Mantiene el
// registro consistente y libera el frame solo cuando nadie más lo referencia: quien llama
// nunca debe liberarlo por su cuenta.
func (e *Engine) Free(pa models.PhysAddr, pid int, va models.VirtAddr) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}

	pa = models.FrameRoundDown(pa)
	va = models.PageRoundDown(va)

	if node, idx, ok := e.registry.Stable(pa); ok {
		e.release("free", node, idx, pid, va)
		return nil
	}

	if node, idx, ok := e.registry.Unstable(pa); ok {
		owner := node.Reverse[0]
		if owner.PID != pid || owner.VA != va {
			e.fail("free", "el candidato %v pertenece a (pid %d, va %v) y no a (pid %d, va %v)",
				pa, owner.PID, owner.VA, pid, va)
		}
		e.removeUnstable("free", idx)
		slog.Debug("KSM - Candidata liberada", "pid", pid, "va", va, "pa", pa)
	}

	e.mem.FreeFrame(pa)
	return nil
}
