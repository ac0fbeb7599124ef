package services

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Ksm es la syscall ksm: corre una pasada completa de escaneo en nombre de req.PID, copia los
// contadores a las direcciones pedidas del proceso y devuelve la memoria libre.
func (m *Memory) Ksm(req models.KsmRequest) (models.KsmResponse, error) {
	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	caller, err := m.processes.get(req.PID)
	if err != nil {
		return models.KsmResponse{}, err
	}

	stats, err := m.engine.Scan(&m.processes, caller.PID)
	if err != nil {
		slog.Error("## KSM - Pasada interrumpida", "pid", caller.PID, "escaneadas", stats.Scanned, "fusionadas", stats.Merged, "error", err)
		return models.KsmResponse{Scanned: stats.Scanned, Merged: stats.Merged}, err
	}

	if err := m.copyOut(caller, req.ScannedAddr, stats.Scanned); err != nil {
		return models.KsmResponse{}, err
	}
	if err := m.copyOut(caller, req.MergedAddr, stats.Merged); err != nil {
		return models.KsmResponse{}, err
	}

	resp := models.KsmResponse{
		Scanned: stats.Scanned,
		Merged:  stats.Merged,
		FreeMem: m.phys.FreePages(),
	}
	slog.Info(fmt.Sprintf("## KSM - Escaneadas: %d - Fusionadas: %d - Memoria libre: %d", resp.Scanned, resp.Merged, resp.FreeMem))
	m.engine.DebugNodes()
	return resp, nil
}

// copyOut escribe value como int32 little-endian en va, si va fue pedida.
func (m *Memory) copyOut(p *Process, va *models.VirtAddr, value int) error {
	if va == nil {
		return nil
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(value)))
	if err := m.write(p, *va, buf[:]); err != nil {
		return fmt.Errorf("copyout de los contadores de KSM: %w", err)
	}
	return nil
}
