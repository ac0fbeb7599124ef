package models

import (
	"fmt"
	"strings"
)

const (
	PageSize  = 4096
	PageShift = 12

	// RAMBase es la dirección física del primer frame de la memoria simulada.
	RAMBase PhysAddr = 0x80000000
)

// PhysAddr es una dirección física de la memoria simulada.
type PhysAddr uint64

// VirtAddr es una dirección virtual dentro del espacio de un proceso.
type VirtAddr uint64

func (pa PhysAddr) String() string { return fmt.Sprintf("%#x", uint64(pa)) }
func (va VirtAddr) String() string { return fmt.Sprintf("%#x", uint64(va)) }

// PageRoundUp redondea size hacia arriba al múltiplo de página.
func PageRoundUp(size uint64) uint64 {
	return (size + PageSize - 1) &^ (PageSize - 1)
}

// PageRoundDown redondea una dirección virtual al inicio de su página.
func PageRoundDown(va VirtAddr) VirtAddr {
	return va &^ (PageSize - 1)
}

// FrameRoundDown redondea una dirección física al inicio de su frame.
func FrameRoundDown(pa PhysAddr) PhysAddr {
	return pa &^ (PageSize - 1)
}

// PTE es una entrada de tabla de páginas: los 10 bits bajos son flags y desde el bit 10
// va el número de página física.
type PTE uint64

const (
	PteV   PTE = 1 << 0 // válida
	PteR   PTE = 1 << 1
	PteW   PTE = 1 << 2
	PteX   PTE = 1 << 3
	PteU   PTE = 1 << 4 // accesible desde modo usuario
	PteCOW PTE = 1 << 8 // bit de software: copy-on-write

	pteFlagMask PTE = 0x3FF
)

// MakePTE arma una entrada que apunta a pa con los flags dados.
func MakePTE(pa PhysAddr, flags PTE) PTE {
	return PTE(uint64(pa)>>PageShift)<<10 | (flags & pteFlagMask)
}

func (p PTE) Addr() PhysAddr { return PhysAddr(uint64(p>>10) << PageShift) }
func (p PTE) Flags() PTE { return p & pteFlagMask }
func (p PTE) Valid() bool { return p&PteV != 0 }
func (p PTE) Writable() bool { return p&PteW != 0 }
func (p PTE) User() bool { return p&PteU != 0 }
func (p PTE) CopyOnWrite() bool { return p&PteCOW != 0 }
func (p PTE) WithAddr(pa PhysAddr) PTE { return MakePTE(pa, p.Flags()) }

// Permissions devuelve los permisos en formato URWX más una C si está marcada copy-on-write,
// por ejemplo "1110C".
func (p PTE) Permissions() string {
	var b strings.Builder
	for _, bit := range []PTE{PteU, PteR, PteW, PteX} {
		if p&bit != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	if p.CopyOnWrite() {
		b.WriteByte('C')
	}
	return b.String()
}

func (p PTE) String() string {
	if !p.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%v %s", p.Addr(), p.Permissions())
}
