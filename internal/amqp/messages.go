package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"meterbot/internal/core"
)

// CalculationConfirmedMessage announces a journaled calculation. The worker
// loads the full calculation from the journal by ID.
type CalculationConfirmedMessage struct {
	EventID       string    `json:"event_id"`
	CalculationID int64     `json:"calculation_id"`
	UserID        string    `json:"user_id"`
	Period        string    `json:"period"`
	Total         string    `json:"total"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewCalculationConfirmedMessage(calc core.ConfirmedCalculation) *CalculationConfirmedMessage {
	return &CalculationConfirmedMessage{
		EventID:       uuid.NewString(),
		CalculationID: calc.ID,
		UserID:        string(calc.User),
		Period:        calc.Period.String(),
		Total:         calc.Total.String(),
		Timestamp:     time.Now().UTC(),
	}
}

func (m *CalculationConfirmedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CalculationConfirmedMessageFromJSON(data []byte) (*CalculationConfirmedMessage, error) {
	var msg CalculationConfirmedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
