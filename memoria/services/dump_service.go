package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/helpers"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Dump escribe la imagen de memoria del proceso en <dump_path>/<pid>-<timestamp>.dmp.
// Las páginas no mapeadas se completan con ceros.
func (m *Memory) Dump(pid int) (string, error) {
	slog.Info(fmt.Sprintf("## PID: %d - Memory Dump solicitado", pid))

	m.memoryLock.Lock()
	defer m.memoryLock.Unlock()

	p, err := m.processes.get(pid)
	if err != nil {
		return "", err
	}

	if err := helpers.CreateDirectory(m.config.DumpPath); err != nil {
		return "", err
	}
	dumpFilePath := filepath.Join(m.config.DumpPath, helpers.DumpName(pid, time.Now()))
	file, err := os.Create(dumpFilePath)
	if err != nil {
		slog.Error(fmt.Sprintf("error al crear archivo de dump: %v", err))
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(m.image(p)); err != nil {
		slog.Error("Fallo al escribir contenido en el archivo de dump")
		return "", fmt.Errorf("fallo al escribir datos al archivo de dump: %w", err)
	}

	slog.Info(fmt.Sprintf("Memoria: Memory Dump completado para PID %d", pid))
	return dumpFilePath, nil
}

// image arma el contenido del proceso leyendo los frames directamente, sin TLB ni fallos.
func (m *Memory) image(p *Process) []byte {
	dumpData := make([]byte, 0, p.Size)
	for va := models.VirtAddr(0); uint64(va) < p.Size; va += models.PageSize {
		pte := p.PageTable.Lookup(va)
		if pte == nil || !pte.Valid() {
			slog.Warn("Página no encontrada en memoria durante dump, rellenando con ceros", "pid", p.PID, "va", va)
			dumpData = append(dumpData, make([]byte, models.PageSize)...)
			continue
		}
		dumpData = append(dumpData, m.phys.Frame(pte.Addr())...)
	}

	// Solo el tamaño exacto del proceso.
	return dumpData[:p.Size]
}
