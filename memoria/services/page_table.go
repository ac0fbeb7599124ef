package services

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

type pageTableLevel struct {
	isLeaf    bool
	subTables map[int]*pageTableLevel
	entry     *models.PTE
}

// PageTable es la tabla multinivel de un proceso. Los niveles intermedios se crean a medida
// que se mapean páginas; las hojas guardan la PTE.
type PageTable struct {
	levels  int
	entries int
	root    *pageTableLevel
}

func NewPageTable(levels, entriesPerPage int) *PageTable {
	return &PageTable{
		levels:  levels,
		entries: entriesPerPage,
		root:    &pageTableLevel{isLeaf: levels == 0, subTables: make(map[int]*pageTableLevel)},
	}
}

// MaxVA es la primera dirección virtual que la tabla no puede mapear.
func (pt *PageTable) MaxVA() models.VirtAddr {
	pages := uint64(1)
	for i := 0; i < pt.levels; i++ {
		pages *= uint64(pt.entries)
	}
	return models.VirtAddr(pages * models.PageSize)
}

// getPageIndices descompone el número de página en un índice por nivel, del más externo al hoja.
func (pt *PageTable) getPageIndices(va models.VirtAddr) []int {
	pageNumber := uint64(va) / models.PageSize
	indices := make([]int, pt.levels)
	for i := pt.levels - 1; i >= 0; i-- {
		indices[i] = int(pageNumber % uint64(pt.entries))
		pageNumber /= uint64(pt.entries)
	}
	return indices
}

// Lookup devuelve la entrada de la página que contiene va, o nil si no está mapeada.
func (pt *PageTable) Lookup(va models.VirtAddr) *models.PTE {
	if va >= pt.MaxVA() {
		return nil
	}
	current := pt.root
	for _, idx := range pt.getPageIndices(va) {
		next, exists := current.subTables[idx]
		if !exists {
			return nil
		}
		current = next
	}
	if !current.isLeaf {
		return nil
	}
	return current.entry
}

// Map crea los niveles que falten e inserta la entrada de va apuntando a pa.
func (pt *PageTable) Map(va models.VirtAddr, pa models.PhysAddr, perm models.PTE) error {
	if va >= pt.MaxVA() {
		return fmt.Errorf("%w: %v", ErrAddressOutOfRange, va)
	}
	indices := pt.getPageIndices(va)

	current := pt.root
	for _, idx := range indices[:len(indices)-1] {
		next, exists := current.subTables[idx]
		if !exists {
			next = &pageTableLevel{subTables: make(map[int]*pageTableLevel)}
			current.subTables[idx] = next
		}
		current = next
	}

	last := indices[len(indices)-1]
	if _, exists := current.subTables[last]; exists {
		return fmt.Errorf("la página %v ya está mapeada", models.PageRoundDown(va))
	}
	pte := models.MakePTE(pa, perm|models.PteV)
	current.subTables[last] = &pageTableLevel{isLeaf: true, entry: &pte}
	return nil
}

// Unmap saca la entrada de va y devuelve su último valor. Los niveles intermedios quedan.
func (pt *PageTable) Unmap(va models.VirtAddr) (models.PTE, bool) {
	if va >= pt.MaxVA() {
		return 0, false
	}
	indices := pt.getPageIndices(va)

	current := pt.root
	for _, idx := range indices[:len(indices)-1] {
		next, exists := current.subTables[idx]
		if !exists {
			return 0, false
		}
		current = next
	}

	last := indices[len(indices)-1]
	leaf, exists := current.subTables[last]
	if !exists || !leaf.isLeaf {
		return 0, false
	}
	delete(current.subTables, last)
	return *leaf.entry, true
}

// Walk recorre todas las hojas en orden de dirección virtual.
func (pt *PageTable) Walk(visit func(va models.VirtAddr, pte *models.PTE)) {
	pt.walk(pt.root, 0, visit)
}

func (pt *PageTable) walk(level *pageTableLevel, page uint64, visit func(models.VirtAddr, *models.PTE)) {
	if level.isLeaf {
		visit(models.VirtAddr(page*models.PageSize), level.entry)
		return
	}
	for _, idx := range slices.Sorted(maps.Keys(level.subTables)) {
		pt.walk(level.subTables[idx], page*uint64(pt.entries)+uint64(idx), visit)
	}
}
