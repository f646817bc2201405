// Package pagination tracks bookkeeping for one paginated list.
package pagination

// Cursor is the pagination state of a single list. At most one load is in
// flight per cursor; HasMore=false is terminal until Reset.
type Cursor struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	HasMore   bool   `json:"hasMore"`
	IsLoading bool   `json:"isLoading"`
	SubjectID string `json:"subjectId,omitempty"`

	generation uint64
}

// New creates a cursor with the given page size, ready to load page 0.
func New(limit int) *Cursor {
	if limit <= 0 {
		limit = 1
	}
	return &Cursor{Limit: limit, HasMore: true}
}

// Reset rewinds to page 0 for a (possibly new) subject. Loads begun before the
// reset become stale: their Generation no longer matches.
func (c *Cursor) Reset(subjectID string) {
	c.Page = 0
	c.HasMore = true
	c.IsLoading = false
	c.SubjectID = subjectID
	c.generation++
}

// BeginLoad admits a load. It returns false when a load is already in flight
// or the list is exhausted.
func (c *Cursor) BeginLoad() bool {
	if c.IsLoading || !c.HasMore {
		return false
	}
	c.IsLoading = true
	return true
}

// CompleteLoad records a successful load and advances the page.
func (c *Cursor) CompleteLoad(hasMoreFromServer bool) {
	c.HasMore = hasMoreFromServer
	c.Page++
	c.IsLoading = false
}

// FailLoad releases the in-flight flag without advancing, so the same page
// can be retried.
func (c *Cursor) FailLoad() {
	c.IsLoading = false
}

// Generation identifies the current subject epoch.
func (c *Cursor) Generation() uint64 {
	return c.generation
}
