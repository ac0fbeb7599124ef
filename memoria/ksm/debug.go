package ksm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

func fmtCopyOnWrite(pid int, va models.VirtAddr) string {
	return fmt.Sprintf("## PID: %d - Copy-on-write - VA: %v", pid, va)
}

// Nodes devuelve una foto de ambas tablas.
func (e *Engine) Nodes() models.NodesResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp := models.NodesResponse{
		Stable:   make([]models.NodeInfo, 0, len(e.registry.StableNodes())),
		Unstable: make([]models.NodeInfo, 0, len(e.registry.UnstableNodes())),
	}
	for _, n := range e.registry.StableNodes() {
		resp.Stable = append(resp.Stable, nodeInfo(n))
	}
	for _, n := range e.registry.UnstableNodes() {
		resp.Unstable = append(resp.Unstable, nodeInfo(n))
	}
	return resp
}

func nodeInfo(n *Node) models.NodeInfo {
	info := models.NodeInfo{
		PA:       n.PA,
		RefCount: n.RefCount,
		Hash:     n.Hash,
		Zero:     n.Zero,
		Reverse:  make([]models.ReverseMappingInfo, 0, len(n.Reverse)),
	}
	for _, rm := range n.Reverse {
		info.Reverse = append(info.Reverse, models.ReverseMappingInfo{PID: rm.PID, VA: rm.VA})
	}
	if n.PTE != nil {
		info.Permissions = n.PTE.Permissions()
	}
	return info
}

// Verify revisa los invariantes del registro. No envenena al motor: es una consulta.
func (e *Engine) Verify() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned != nil {
		return e.poisonedErr()
	}
	return e.registry.Check()
}

// DebugNodes vuelca el registro al log en nivel DEBUG.
func (e *Engine) DebugNodes() {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	nodes := e.Nodes()

	slog.Debug("------------------------- nodos estables -------------------------")
	for i, n := range nodes.Stable {
		slog.Debug(fmt.Sprintf("PA: %v, RC: %d, hash: %#016x", n.PA, n.RefCount, n.Hash))
		if i == 0 {
			slog.Debug("  La página cero no lleva mapeos inversos")
			continue
		}
		for _, rm := range n.Reverse {
			slog.Debug(fmt.Sprintf("  pid: %d, VA: %v", rm.PID, rm.VA))
		}
	}
	slog.Debug("------------------------ nodos inestables ------------------------")
	for _, n := range nodes.Unstable {
		for _, rm := range n.Reverse {
			slog.Debug(fmt.Sprintf("PA: %v, RC: %d, hash: %#016x", n.PA, n.RefCount, n.Hash),
				"pid", rm.PID, "va", rm.VA, "permisos", n.Permissions)
		}
	}
}
