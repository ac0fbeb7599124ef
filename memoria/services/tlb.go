package services

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

type TLBEntry struct {
	PID        int
	PageNumber uint64
	Frame      models.PhysAddr
	Writable   bool
	LastUsed   int64
}

// TLB cachea traducciones (pid, página) -> frame. Con tamaño 0 queda desactivada.
type TLB struct {
	mu        sync.Mutex
	entries   []TLBEntry
	maxSize   int
	algorithm string // "FIFO" o "LRU"
	counter   int64  // para LRU, contador incremental
}

func NewTLB(size int, algorithm string) *TLB {
	return &TLB{
		entries:   make([]TLBEntry, 0, size),
		maxSize:   size,
		algorithm: algorithm,
	}
}

func (t *TLB) Search(pid int, pageNumber uint64) (TLBEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].PID == pid && t.entries[i].PageNumber == pageNumber {
			if t.algorithm == "LRU" {
				t.counter++
				t.entries[i].LastUsed = t.counter
			}
			return t.entries[i], true
		}
	}
	return TLBEntry{}, false
}

func (t *TLB) Insert(pid int, pageNumber uint64, frame models.PhysAddr, writable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxSize <= 0 {
		return
	}

	t.counter++
	entry := TLBEntry{
		PID:        pid,
		PageNumber: pageNumber,
		Frame:      frame,
		Writable:   writable,
		LastUsed:   t.counter,
	}

	for i := range t.entries {
		if t.entries[i].PID == pid && t.entries[i].PageNumber == pageNumber {
			t.entries[i] = entry
			return
		}
	}

	if len(t.entries) < t.maxSize {
		t.entries = append(t.entries, entry)
		return
	}

	victim := 0
	if t.algorithm == "LRU" {
		for i, e := range t.entries {
			if e.LastUsed < t.entries[victim].LastUsed {
				victim = i
			}
		}
	}
	slog.Debug(fmt.Sprintf("TLB reemplazo: PID %d - Página %d por PID %d - Página %d",
		t.entries[victim].PID, t.entries[victim].PageNumber, pid, pageNumber))

	// FIFO: la más vieja siempre está al principio.
	t.entries = append(t.entries[:victim], t.entries[victim+1:]...)
	t.entries = append(t.entries, entry)
}

// Flush invalida todas las entradas.
func (t *TLB) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = t.entries[:0]
}

// FlushPID invalida las entradas de un proceso.
func (t *TLB) FlushPID(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

func (t *TLB) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
