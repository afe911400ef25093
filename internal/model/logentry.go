package model

// Operation names recorded in the audit log.
const (
	OpApply       = "APPLY"
	OpReturn      = "RETURN"
	OpApprove     = "APPROVE"
	OpReject      = "REJECT"
	OpLend        = "LEND"
	OpRepair      = "REPAIR"
	OpScrap       = "SCRAP"
	OpAddItem     = "ADD_ITEM"
	OpAddList     = "ADD_LIST"
	OpAddCategory = "ADD_CATEGORY"
)

// LogEntry is one immutable audit record.
type LogEntry struct {
	ID              int64  `json:"id"`
	TimestampMillis int64  `json:"timestamp_millis"`
	UserID          string `json:"user_id"`
	Operation       string `json:"operation"`
	TargetItemID    *int64 `json:"target_item_id,omitempty"`
	Note            string `json:"note,omitempty"`
}
