package services

import (
	"fmt"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/ksm"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/list"
)

type Metrics struct {
	PageTableAccesses int
	Reads             int
	Writes            int
	CopyOnWrites      int
}

type Process struct {
	PID       int
	Parent    int
	Name      string
	State     models.Estado
	Size      uint64
	PageTable *PageTable
	Metrics   Metrics
}

// ProcessTable guarda los procesos vivos en orden de creación.
type ProcessTable struct {
	processes list.ArrayList[*Process]
	nextPID   int
}

func (t *ProcessTable) add(p *Process) {
	p.PID = t.nextPID
	t.nextPID++
	t.processes.Add(p)
}

func (t *ProcessTable) get(pid int) (*Process, error) {
	p, _, found := t.processes.Find(func(p *Process) bool { return p.PID == pid })
	if !found {
		return nil, fmt.Errorf("%w: PID %d", ErrProcessNotFound, pid)
	}
	return p, nil
}

func (t *ProcessTable) remove(pid int) {
	t.processes.RemoveWhere(func(p *Process) bool { return p.PID == pid })
}

// Snapshot es la foto de procesos que recorre el escaneo de KSM.
func (t *ProcessTable) Snapshot() []ksm.Process {
	snapshot := make([]ksm.Process, 0, t.processes.Size())
	t.processes.ForEach(func(_ int, p *Process) {
		snapshot = append(snapshot, ksm.Process{
			PID:       p.PID,
			State:     p.State,
			Size:      p.Size,
			PageTable: p.PageTable,
		})
	})
	return snapshot
}
