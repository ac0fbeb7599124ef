package list

import (
	"fmt"
	"sync"
)

// ArrayList es una lista genérica sobre un slice protegido por un RWMutex. Las tablas de KSM
// dependen de SwapRemove: quitar un nodo no cambia el índice de ningún otro salvo el último.
type ArrayList[T any] struct {
	mu    sync.RWMutex
	items []T
}

// Add inserta un elemento al final de la lista.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(10)
//		list.Add(20)
//	}
func (list *ArrayList[T]) Add(item T) {
	list.mu.Lock()
	defer list.mu.Unlock()

	list.items = append(list.items, item)
}

// Clear vacía la lista conservando la capacidad reservada.
func (list *ArrayList[T]) Clear() {
	list.mu.Lock()
	defer list.mu.Unlock()

	var zero T
	for i := range list.items {
		list.items[i] = zero
	}
	list.items = list.items[:0]
}

// Find permite buscar un elemento de la lista dado un predicado. Retorna el elemento, su índice
// y si fue encontrado; si no lo encuentra el índice es -1.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(10)
//		list.Add(20)
//
//		number, index, found := list.Find(func(number int) bool {
//			return number == 20
//		})
//	}
func (list *ArrayList[T]) Find(predicate func(T) bool) (T, int, bool) {
	list.mu.RLock()
	defer list.mu.RUnlock()

	for i, item := range list.items {
		if predicate(item) {
			return item, i, true
		}
	}
	var zero T
	return zero, -1, false
}

// ForEach aplica callback a cada elemento junto con su índice. El callback no debe modificar la lista.
func (list *ArrayList[T]) ForEach(callback func(int, T)) {
	list.mu.RLock()
	defer list.mu.RUnlock()

	for i, item := range list.items {
		callback(i, item)
	}
}

// Get devuelve el elemento en el índice proporcionado.
func (list *ArrayList[T]) Get(index int) (T, error) {
	list.mu.RLock()
	defer list.mu.RUnlock()

	if index < 0 || index >= len(list.items) {
		var zero T
		return zero, fmt.Errorf("index out of range: %d", index)
	}
	return list.items[index], nil
}

// GetAll retorna una copia de todos los elementos que se encuentran en la lista.
func (list *ArrayList[T]) GetAll() []T {
	list.mu.RLock()
	defer list.mu.RUnlock()

	itemsCopy := make([]T, len(list.items))
	copy(itemsCopy, list.items)
	return itemsCopy
}

// RemoveWhere elimina el primer elemento que cumpla match conservando el orden del resto.
// Retorna si eliminó algo.
func (list *ArrayList[T]) RemoveWhere(match func(T) bool) bool {
	list.mu.Lock()
	defer list.mu.Unlock()

	for i, item := range list.items {
		if match(item) {
			list.items = append(list.items[:i], list.items[i+1:]...)
			return true
		}
	}
	return false
}

// Size devuelve el tamaño de la lista.
func (list *ArrayList[T]) Size() int {
	list.mu.RLock()
	defer list.mu.RUnlock()

	return len(list.items)
}

// SwapRemove elimina el elemento del índice moviendo el último a su lugar. No conserva el orden
// pero es O(1). Retorna el elemento eliminado.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(10)
//		list.Add(20)
//		list.Add(30)
//		list.SwapRemove(0) // [30, 20]
//	}
func (list *ArrayList[T]) SwapRemove(index int) (T, error) {
	list.mu.Lock()
	defer list.mu.Unlock()

	var zero T
	if index < 0 || index >= len(list.items) {
		return zero, fmt.Errorf("index out of range: %d", index)
	}
	removed := list.items[index]
	last := len(list.items) - 1
	list.items[index] = list.items[last]
	list.items[last] = zero
	list.items = list.items[:last]
	return removed, nil
}
