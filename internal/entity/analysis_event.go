package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// AnalysisEvent is the append-only audit record of a screening decision.
type AnalysisEvent struct {
	ID             int64          `json:"id" gorm:"primaryKey"`
	Ticker         string         `json:"ticker" gorm:"index"`
	EventType      string         `json:"event_type"`
	AgentName      string         `json:"agent_name"`
	IsInteresting  bool           `json:"is_interesting"`
	Confidence     int            `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	Headlines      pq.StringArray `json:"headlines" gorm:"type:text[]"`
	InputContext   datatypes.JSON `json:"input_context" gorm:"type:jsonb"`
	OutputDecision datatypes.JSON `json:"output_decision" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (AnalysisEvent) TableName() string {
	return "analysis_events"
}
