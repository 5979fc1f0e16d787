package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Debate is the transcript of one bull versus bear analysis.
type Debate struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	Ticker          string         `json:"ticker" gorm:"index"`
	AnalysisEventID int64          `json:"analysis_event_id"`
	DebateType      string         `json:"debate_type"`
	BullArgument    string         `json:"bull_argument"`
	BearArgument    string         `json:"bear_argument"`
	Consensus       string         `json:"consensus"`
	Transcript      datatypes.JSON `json:"transcript" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Debate) TableName() string {
	return "debates"
}
