package model

// State is the pool lifecycle state.
type State uint8

const (
	// Open accepts deposits, withdrawals, and group changes.
	Open State = iota
	// PaidToPresale means the pooled value has been forwarded to the target.
	PaidToPresale
	// Distribution means at least one token has been confirmed and shares are claimable.
	Distribution
	// FullRefund means the target will not deliver tokens; refunds are claimable.
	FullRefund
	// Canceled means the pool was aborted before paying out.
	Canceled
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case PaidToPresale:
		return "paid_to_presale"
	case Distribution:
		return "distribution"
	case FullRefund:
		return "full_refund"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Collecting reports whether the pool still accepts contributions.
func (s State) Collecting() bool {
	return s == Open
}

// Terminal reports whether no further state transition is possible.
func (s State) Terminal() bool {
	return s == Distribution || s == FullRefund || s == Canceled
}
