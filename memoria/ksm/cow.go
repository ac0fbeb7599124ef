package ksm

import (
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// CopyOnWrite resuelve un fallo de escritura sobre una página compartida por KSM: le da al
// proceso una copia privada escribible y descuenta el mapeo del nodo estable. Si la página no
// está protegida por KSM devuelve ErrNotCopyOnWrite y no toca nada.
func (e *Engine) CopyOnWrite(pt PageTable, pid int, va models.VirtAddr) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}

	va = models.PageRoundDown(va)
	pte := pt.Lookup(va)
	if pte == nil || !pte.Valid() || !pte.User() || !pte.CopyOnWrite() {
		return ErrNotCopyOnWrite
	}

	shared := pte.Addr()
	node, idx, ok := e.registry.Stable(shared)
	if !ok {
		return ErrNotCopyOnWrite
	}

	private, err := e.mem.AllocFrame()
	if err != nil {
		return err
	}
	copy(e.mem.Frame(private), e.mem.Frame(shared))

	flags := (pte.Flags() &^ models.PteCOW) | models.PteW
	*pte = models.MakePTE(private, flags)
	e.tlb.Flush()

	e.release("cow", node, idx, pid, va)

	slog.Info(fmtCopyOnWrite(pid, va))
	return nil
}

// release descuenta el mapeo (pid, va) del nodo estable idx y, si era el último, saca el nodo
// de la tabla y libera el frame. Retorna si el frame fue liberado.
func (e *Engine) release(op string, node *Node, idx int, pid int, va models.VirtAddr) bool {
	if node.Zero {
		if node.RefCount > 0 {
			node.RefCount--
		}
		return false
	}

	if !node.removeMapping(pid, va) {
		e.fail(op, "mapeo inverso (pid %d, va %v) inexistente en el nodo %v", pid, va, node.PA)
	}
	node.RefCount--
	if node.RefCount > 0 {
		return false
	}

	if _, err := e.registry.RemoveStable(idx); err != nil {
		e.fail(op, "%v", err)
	}
	e.mem.FreeFrame(node.PA)
	slog.Debug("KSM - Nodo estable sin referencias, frame liberado", "pa", node.PA)
	return true
}
