package service

// Page is one slice of a longer list
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	TotalItems int
}

// Paginate returns page number page (1-based) of items. Pages below 1 are
// treated as 1; a page past the end has no items.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	total := len(items)
	p := Page[T]{
		Items:      []T{},
		Number:     page,
		TotalPages: (total + perPage - 1) / perPage,
		TotalItems: total,
	}

	start := (page - 1) * perPage
	if start >= total {
		return p
	}
	end := min(start+perPage, total)
	p.Items = items[start:end]
	return p
}
