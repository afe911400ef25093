package model

// ItemStatus is the lifecycle state of a single item instance. The numeric
// codes are persisted and must not be renumbered.
type ItemStatus int

// Item statuses.
const (
	StatusLent      ItemStatus = 0
	StatusAvailable ItemStatus = 1
	StatusRepairing ItemStatus = 2
	StatusScrapped  ItemStatus = 3
	StatusApplying  ItemStatus = 4
	StatusUnknown   ItemStatus = 5
)

// Holder and note sentinels.
const (
	HolderWarehouse = "warehouse"
	HolderRepair    = "repair"
	DefaultHolder   = "unknown"
	DefaultNote     = "none"
)

var statusLabels = map[ItemStatus]string{
	StatusLent:      "lent",
	StatusAvailable: "available",
	StatusRepairing: "repairing",
	StatusScrapped:  "scrapped",
	StatusApplying:  "applying",
	StatusUnknown:   "unknown",
}

// Label returns the display label for the status. Unrecognized codes map to
// "unknown".
func (s ItemStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusUnknown]
}

func (s ItemStatus) String() string {
	return s.Label()
}

// Valid reports whether s is one of the defined statuses.
func (s ItemStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

var transitions = map[ItemStatus][]ItemStatus{
	StatusAvailable: {StatusLent, StatusApplying, StatusRepairing, StatusScrapped},
	StatusApplying:  {StatusAvailable, StatusLent},
	StatusLent:      {StatusAvailable},
	StatusRepairing: {StatusAvailable, StatusScrapped},
}

// CanTransition reports whether an item may move from one status to another.
// SCRAPPED is terminal and UNKNOWN is never a target.
func CanTransition(from, to ItemStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Item is one physical instance belonging to a list.
type Item struct {
	ID      int64      `json:"id"`
	ListID  int64      `json:"list_id"`
	Status  ItemStatus `json:"status"`
	Holder  string     `json:"holder,omitempty"`
	Note    string     `json:"note,omitempty"`
	Purpose string     `json:"purpose,omitempty"`
}

// ItemDetail is the read model for a single item.
type ItemDetail struct {
	ID          int64      `json:"id"`
	ListID      int64      `json:"list_id"`
	ListName    string     `json:"list_name"`
	Status      ItemStatus `json:"status"`
	StatusLabel string     `json:"status_label"`
	Holder      string     `json:"holder"`
	Note        string     `json:"note"`
	Purpose     string     `json:"purpose,omitempty"`
}
