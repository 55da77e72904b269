package model

// PoolSummary is the read-only top-level view of a pool.
type PoolSummary struct {
	State         string   `json:"state"`
	Creator       string   `json:"creator"`
	ServiceFeePPM uint32   `json:"service_fee_ppm"`
	Target        string   `json:"target,omitempty"`
	RefundSource  string   `json:"refund_source,omitempty"`
	Tokens        []string `json:"tokens"`
	Participants  []string `json:"participants"`
	Admins        []string `json:"admins"`
	Balance       string   `json:"balance"`
	Contribution  string   `json:"contribution"`
	Remaining     string   `json:"remaining"`
	FeeToToken    bool     `json:"fee_to_token"`
	CreatorFees   string   `json:"creator_fees,omitempty"`
	ServiceFees   string   `json:"service_fees,omitempty"`
	GroupsActive  int      `json:"groups_active"`
}

// GroupDetail is the read-only view of one group.
type GroupDetail struct {
	Index           int    `json:"index"`
	Exists          bool   `json:"exists"`
	Contribution    string `json:"contribution"`
	Remaining       string `json:"remaining"`
	MaxBalance      string `json:"max_balance"`
	MinContribution string `json:"min_contribution"`
	MaxContribution string `json:"max_contribution"`
	FeePPM          uint32 `json:"fee_ppm"`
	Restricted      bool   `json:"restricted"`
}

// ParticipantGroupDetail is one participant's position in one group.
type ParticipantGroupDetail struct {
	Group        int    `json:"group"`
	Contribution string `json:"contribution"`
	Remaining    string `json:"remaining"`
	AllowListed  bool   `json:"allow_listed"`
}

// ParticipantDetail is the read-only view of one participant.
type ParticipantDetail struct {
	Address string                   `json:"address"`
	Admin   bool                     `json:"admin"`
	Exists  bool                     `json:"exists"`
	Groups  []ParticipantGroupDetail `json:"groups"`
}
