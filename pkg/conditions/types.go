package conditions

// ConditionType represents aggregated condition types.
type ConditionType string

// ConditionReason represents aggregated condition reasons.
type ConditionReason string

// ConditionMessage represents aggregated condition messages.
type ConditionMessage string
