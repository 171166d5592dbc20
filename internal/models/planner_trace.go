package models

// PlannerTrace records one LLM exchange made while planning. Traces exist for
// debugging and prompt tuning; writing them is best-effort and never blocks
// segment production.
type PlannerTrace struct {
	// ID is an auto-increment key.
	ID int64 `gorm:"primarykey;autoIncrement" json:"id"`

	// SessionID is the owning session.
	SessionID UUID `gorm:"not null;type:varchar(36);index" json:"session_id"`

	// Stage names the planning step that made the call (track_selection,
	// transition_plan, intro_script, ...).
	Stage string `gorm:"not null;size:64;index" json:"stage"`

	// Prompt is the full prompt text sent to the model.
	Prompt string `gorm:"type:text" json:"prompt"`

	// Response is the raw completion text received.
	Response string `gorm:"type:text" json:"response"`

	// Model is the provider model identifier used for the call.
	Model string `gorm:"size:128" json:"model,omitempty"`

	// ReasoningBudget is the token budget granted for the call.
	ReasoningBudget int `json:"reasoning_budget,omitempty"`

	// CreatedAt is when the trace row was inserted.
	CreatedAt Time `json:"created_at"`
}

// TableName returns the table name for PlannerTrace.
func (PlannerTrace) TableName() string {
	return "planner_traces"
}
