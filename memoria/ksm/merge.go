package ksm

import (
	"bytes"
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Merge decide qué hacer con un frame recién escaneado: fusionarlo con un nodo estable,
// promover un candidato inestable a estable o registrarlo como candidato. Retorna true si
// el frame fue fusionado (y por lo tanto liberado).
func (e *Engine) Merge(pa models.PhysAddr, pt PageTable, pid int, va models.VirtAddr) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return false, err
	}
	return e.merge(pa, pt, pid, va)
}

func (e *Engine) merge(pa models.PhysAddr, pt PageTable, pid int, va models.VirtAddr) (bool, error) {
	pa = models.FrameRoundDown(pa)
	va = models.PageRoundDown(va)

	content := e.mem.Frame(pa)
	hash := e.hash(content)
	accept := e.sameContent(content)

	if node, _, ok := e.registry.StableMatch(hash, accept); ok {
		return e.mergeIntoStable(node, pa, pt, pid, va)
	}

	if node, idx, ok := e.registry.UnstableMatch(hash, accept); ok {
		return e.promote(node, idx, pa, pt, pid, va)
	}

	// El contenido cambió desde el escaneo anterior: se actualiza la huella y sigue siendo candidato.
	if node, _, ok := e.registry.Unstable(pa); ok {
		node.Hash = hash
		slog.Debug("KSM - Página candidata modificada", "pid", pid, "va", va, "pa", pa)
		return false, nil
	}

	if e.registry.UnstableFull() {
		return false, e.registry.unstableFullErr()
	}
	pte := e.lookup("merge", pt, va)
	if err := e.registry.AddUnstable(&Node{
		PA:       pa,
		Hash:     hash,
		RefCount: 1,
		Reverse:  []ReverseMapping{{PID: pid, VA: va}},
		PTE:      pte,
	}); err != nil {
		return false, err
	}
	slog.Debug("KSM - Página única, queda como candidata", "pid", pid, "va", va, "pa", pa)
	return false, nil
}

// sameContent arma el filtro de candidatos: sin verificación alcanza con la huella.
func (e *Engine) sameContent(content []byte) func(*Node) bool {
	if !e.verify {
		return func(*Node) bool { return true }
	}
	return func(n *Node) bool {
		return bytes.Equal(e.mem.Frame(n.PA), content)
	}
}

func (e *Engine) mergeIntoStable(node *Node, pa models.PhysAddr, pt PageTable, pid int, va models.VirtAddr) (bool, error) {
	if node.PA == pa {
		return false, nil
	}
	if _, _, ok := e.registry.Stable(pa); ok {
		slog.Warn("KSM - Dos frames estables con la misma huella, no se fusionan", "pa", pa, "estable", node.PA)
		return false, nil
	}
	if !node.Zero && node.full() {
		slog.Debug("KSM - Nodo estable sin lugar para más mapeos", "pa", node.PA, "pid", pid, "va", va)
		return false, nil
	}

	pte := e.lookup("merge", pt, va)
	if pte.Addr() != pa {
		e.fail("merge", "la pte de %v apunta a %v y no al frame escaneado %v", va, pte.Addr(), pa)
	}

	node.RefCount++
	if !node.Zero {
		node.addMapping(pid, va)
	}
	*pte = sharedPTE(*pte, node.PA)
	e.tlb.Flush()

	if _, idx, ok := e.registry.Unstable(pa); ok {
		e.removeUnstable("merge", idx)
	}
	e.mem.FreeFrame(pa)

	slog.Debug("KSM - Fusionada con nodo estable", "pid", pid, "va", va, "pa_vieja", pa, "pa_nueva", node.PA, "refcnt", node.RefCount)
	return true, nil
}

func (e *Engine) promote(node *Node, idx int, pa models.PhysAddr, pt PageTable, pid int, va models.VirtAddr) (bool, error) {
	if node.PA == pa {
		return false, nil
	}
	if _, _, ok := e.registry.Stable(pa); ok {
		return false, nil
	}
	if e.registry.StableFull() {
		return false, e.registry.stableFullErr()
	}

	if node.PTE == nil || !node.PTE.Valid() || node.PTE.Addr() != node.PA {
		e.fail("promote", "la pte del candidato %v ya no lo mapea", node.PA)
	}
	pte := e.lookup("promote", pt, va)
	if pte.Addr() != pa {
		e.fail("promote", "la pte de %v apunta a %v y no al frame escaneado %v", va, pte.Addr(), pa)
	}

	*node.PTE = sharedPTE(*node.PTE, node.PA)
	*pte = sharedPTE(*pte, node.PA)
	e.tlb.Flush()

	stable, err := e.registry.Promote(idx, ReverseMapping{PID: pid, VA: va})
	if err != nil {
		e.fail("promote", "%v", err)
	}
	if _, i, ok := e.registry.Unstable(pa); ok {
		e.removeUnstable("promote", i)
	}
	e.mem.FreeFrame(pa)

	slog.Debug("KSM - Candidata promovida a estable", "pid", pid, "va", va, "pa_vieja", pa, "pa_nueva", stable.PA, "refcnt", stable.RefCount)
	return true, nil
}

func (e *Engine) removeUnstable(op string, idx int) {
	if _, err := e.registry.RemoveUnstable(idx); err != nil {
		e.fail(op, "%v", err)
	}
}

// sharedPTE apunta la entrada a target sin permiso de escritura. Si era escribible queda
// marcada copy-on-write; si no, sigue siendo de solo lectura.
func sharedPTE(pte models.PTE, target models.PhysAddr) models.PTE {
	shared := (pte &^ models.PteW).WithAddr(target)
	if pte.Writable() {
		shared |= models.PteCOW
	}
	return shared
}
