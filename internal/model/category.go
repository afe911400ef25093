package model

// Category is the top level of the inventory hierarchy. Total is the sum of
// its lists' totals.
type Category struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Total   int    `json:"total"`
	ListSeq int64  `json:"-"`
}

// List is an item type inside a category. Its counts are derived from the
// item rows and kept in sync on every write.
type List struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Free       int    `json:"free"`
	Broken     int    `json:"broken"`
	ItemSeq    int64  `json:"-"`
}

// ChildFanout is the number of id slots reserved for children of one parent.
const ChildFanout = 1000

// DeriveChildID encodes a child's id from its parent's id and a per-parent
// sequence number.
func DeriveChildID(parentID, seq int64) int64 {
	return parentID*ChildFanout + seq
}

// ParentID returns the id of the node that allocated id.
func ParentID(id int64) int64 {
	return id / ChildFanout
}

// NextSeq returns the sequence number following the last allocated one. Only
// the low three digits of last are considered, so the sequence wraps after
// ChildFanout-1 children.
func NextSeq(last int64) int64 {
	return last%ChildFanout + 1
}
