package model

// Audit event kinds, one per state-mutating operation.
const (
	EventPoolCreated     = "pool_created"
	EventStateChanged    = "state_changed"
	EventAdminAdded      = "admin_added"
	EventDeposit         = "deposit"
	EventWithdrawal      = "withdrawal"
	EventGroupSettings   = "group_settings"
	EventGroupRebalanced = "group_rebalanced"
	EventAllowListChange = "allow_list_change"
	EventTargetPaid      = "target_paid"
	EventTokenConfirmed  = "token_confirmed"
	EventFeesDistributed = "fees_distributed"
	EventRefundAccepted  = "refund_accepted"
	EventRefundSourceSet = "refund_source_set"
	EventShareClaimed    = "share_claimed"
	EventShareReversed   = "share_reversed"
)

// AuditEvent is one structured record of a state-mutating operation.
// Amounts are decimal strings so arbitrary-precision values survive JSON.
type AuditEvent struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
	Actor     string `json:"actor,omitempty"`
	Group     int    `json:"group"` // -1 when the event is not group-scoped
	Token     string `json:"token,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}
