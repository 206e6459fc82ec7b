package rho

type MapperFunc[E, V any] func(E, int) V

func Map[E, V any](arr []E, mapper MapperFunc[E, V]) []V {
	values := make([]V, 0, len(arr))

	for i, el := range arr {
		values = append(values, mapper(el, i))
	}

	return values
}

type FilterFunc[E any] func(E, int) bool

func Filter[E any](arr []E, filter FilterFunc[E]) []E {
	values := []E{}

	for i, el := range arr {
		if ok := filter(el, i); ok {
			values = append(values, el)
		}
	}

	return values
}

// Compact drops nil pointers.
func Compact[E any](arr []*E) []*E {
	return Filter(arr, func(el *E, _ int) bool { return el != nil })
}
