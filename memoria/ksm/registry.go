package ksm

import (
	"fmt"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/list"
)

// MaxReverseMappings es la cantidad de mapeos inversos que guarda cada nodo.
const MaxReverseMappings = 16

// ReverseMapping identifica la vista de un proceso sobre un frame compartido.
type ReverseMapping struct {
	PID int
	VA  models.VirtAddr
}

// Node es una entrada del registro. En los nodos estables Reverse enumera todos los mapeos
// (salvo en la página cero, donde solo se lleva la cuenta); en los inestables hay exactamente
// uno y PTE apunta a la entrada de ese único dueño.
type Node struct {
	PA       models.PhysAddr
	Hash     uint64
	RefCount int
	Reverse  []ReverseMapping
	PTE      *models.PTE
	Zero     bool
}

func (n *Node) full() bool {
	return len(n.Reverse) >= MaxReverseMappings
}

func (n *Node) addMapping(pid int, va models.VirtAddr) {
	n.Reverse = append(n.Reverse, ReverseMapping{PID: pid, VA: va})
}

// removeMapping saca el mapeo (pid, va) reemplazándolo por el último.
func (n *Node) removeMapping(pid int, va models.VirtAddr) bool {
	for i, rm := range n.Reverse {
		if rm.PID == pid && rm.VA == va {
			last := len(n.Reverse) - 1
			n.Reverse[i] = n.Reverse[last]
			n.Reverse = n.Reverse[:last]
			return true
		}
	}
	return false
}

// Registry son las dos tablas de KSM. No tiene lock propio: lo usa el Engine bajo su mutex.
type Registry struct {
	stable      list.ArrayList[*Node]
	unstable    list.ArrayList[*Node]
	stableCap   int
	unstableCap int
}

func NewRegistry(stableCap, unstableCap int) *Registry {
	return &Registry{stableCap: stableCap, unstableCap: unstableCap}
}

// Reset vacía ambas tablas y deja a sentinel en la posición 0 de la tabla estable.
func (r *Registry) Reset(sentinel *Node) {
	r.stable.Clear()
	r.unstable.Clear()
	r.stable.Add(sentinel)
}

// Sentinel es el nodo de la página cero, nil antes de Reset.
func (r *Registry) Sentinel() *Node {
	node, err := r.stable.Get(0)
	if err != nil {
		return nil
	}
	return node
}

func byAddr(pa models.PhysAddr) func(*Node) bool {
	return func(n *Node) bool { return n.PA == pa }
}

func byHash(hash uint64, accept func(*Node) bool) func(*Node) bool {
	return func(n *Node) bool { return n.Hash == hash && accept(n) }
}

func (r *Registry) Stable(pa models.PhysAddr) (*Node, int, bool) {
	return r.stable.Find(byAddr(pa))
}

func (r *Registry) Unstable(pa models.PhysAddr) (*Node, int, bool) {
	return r.unstable.Find(byAddr(pa))
}

// StableMatch busca el primer nodo estable con esa huella que además acepte accept.
func (r *Registry) StableMatch(hash uint64, accept func(*Node) bool) (*Node, int, bool) {
	return r.stable.Find(byHash(hash, accept))
}

func (r *Registry) UnstableMatch(hash uint64, accept func(*Node) bool) (*Node, int, bool) {
	return r.unstable.Find(byHash(hash, accept))
}

func (r *Registry) StableFull() bool   { return r.stable.Size() >= r.stableCap }
func (r *Registry) UnstableFull() bool { return r.unstable.Size() >= r.unstableCap }

func (r *Registry) stableFullErr() error {
	return fmt.Errorf("%w (%d nodos)", ErrStableTableFull, r.stableCap)
}

func (r *Registry) unstableFullErr() error {
	return fmt.Errorf("%w (%d nodos)", ErrUnstableTableFull, r.unstableCap)
}

func (r *Registry) AddUnstable(n *Node) error {
	if r.UnstableFull() {
		return r.unstableFullErr()
	}
	r.unstable.Add(n)
	return nil
}

func (r *Registry) AddStable(n *Node) error {
	if r.StableFull() {
		return r.stableFullErr()
	}
	r.stable.Add(n)
	return nil
}

// RemoveStable saca el nodo de la posición i. La página cero no se elimina nunca.
func (r *Registry) RemoveStable(i int) (*Node, error) {
	if i == 0 {
		return nil, fmt.Errorf("ksm: la página cero no se puede eliminar")
	}
	return r.stable.SwapRemove(i)
}

func (r *Registry) RemoveUnstable(i int) (*Node, error) {
	return r.unstable.SwapRemove(i)
}

// Promote mueve el nodo inestable i a la tabla estable agregando rm como segundo mapeo.
func (r *Registry) Promote(i int, rm ReverseMapping) (*Node, error) {
	if r.StableFull() {
		return nil, r.stableFullErr()
	}
	node, err := r.unstable.SwapRemove(i)
	if err != nil {
		return nil, err
	}
	node.RefCount++
	node.addMapping(rm.PID, rm.VA)
	node.PTE = nil
	r.stable.Add(node)
	return node, nil
}

func (r *Registry) StableNodes() []*Node   { return r.stable.GetAll() }
func (r *Registry) UnstableNodes() []*Node { return r.unstable.GetAll() }

// Check verifica los invariantes del registro y devuelve la primera violación encontrada.
func (r *Registry) Check() error {
	seen := make(map[models.PhysAddr]string)

	for i, n := range r.StableNodes() {
		if prev, dup := seen[n.PA]; dup {
			return fmt.Errorf("frame %v repetido (estable y %s)", n.PA, prev)
		}
		seen[n.PA] = "estable"

		if i == 0 {
			if !n.Zero {
				return fmt.Errorf("la posición 0 de la tabla estable no es la página cero")
			}
			continue
		}
		if n.Zero {
			return fmt.Errorf("página cero fuera de la posición 0 (%d)", i)
		}
		if n.RefCount != len(n.Reverse) {
			return fmt.Errorf("nodo estable %v: refcnt %d con %d mapeos inversos", n.PA, n.RefCount, len(n.Reverse))
		}
		if n.RefCount <= 0 {
			return fmt.Errorf("nodo estable %v con refcnt %d", n.PA, n.RefCount)
		}
	}

	for _, n := range r.UnstableNodes() {
		if prev, dup := seen[n.PA]; dup {
			return fmt.Errorf("frame %v repetido (inestable y %s)", n.PA, prev)
		}
		seen[n.PA] = "inestable"

		if n.RefCount != 1 || len(n.Reverse) != 1 {
			return fmt.Errorf("nodo inestable %v: refcnt %d con %d mapeos inversos", n.PA, n.RefCount, len(n.Reverse))
		}
		if n.PTE == nil || n.PTE.Addr() != n.PA {
			return fmt.Errorf("nodo inestable %v: la pte no apunta al frame", n.PA)
		}
	}
	return nil
}
