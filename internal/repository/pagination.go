package repository

// PageSize is the fixed number of items per page applied uniformly to
// every paginated listing in the API.  Pages are 1-based.
const PageSize = 10

// Offset converts a 1-based page number into a SQL OFFSET.  Pages
// below 1 are treated as page 1.
func Offset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}

// TotalPages returns how many pages are needed for total items: the
// item count divided by the page size, rounded up.  An empty result
// set reports zero pages.
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	pages := total / PageSize
	if total%PageSize != 0 {
		pages++
	}
	return pages
}
