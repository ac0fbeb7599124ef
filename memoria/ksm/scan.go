package ksm

import (
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Scan hace una pasada completa sobre los procesos que entrega lister, salteando al que
// invoca y a los procesos de arranque. El lock se mantiene durante toda la pasada.
//
// Si una tabla se llena la pasada se corta y se devuelven los contadores hasta ese punto
// junto con el error.
func (e *Engine) Scan(lister ProcessLister, caller int) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Stats
	if err := e.usable(); err != nil {
		return stats, err
	}

	for _, p := range lister.Snapshot() {
		if !scannable(p, caller) {
			continue
		}
		slog.Debug("KSM - Escaneando proceso", "pid", p.PID, "tamanio", p.Size)

		last := models.VirtAddr(models.PageRoundUp(p.Size))
		for va := models.VirtAddr(0); va < last; va += models.PageSize {
			pte := p.PageTable.Lookup(va)
			if pte == nil || !pte.Valid() {
				continue
			}
			stats.Scanned++

			merged, err := e.merge(pte.Addr(), p.PageTable, p.PID, va)
			if err != nil {
				return stats, err
			}
			if merged {
				stats.Merged++
			}
		}
	}
	return stats, nil
}

func scannable(p Process, caller int) bool {
	if p.PID == models.InitPID || p.PID == models.FileServerPID || p.PID == caller {
		return false
	}
	return p.State.Scannable()
}
