package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// EventExpenseCreated is the type of the only event the service emits.
const EventExpenseCreated = "expense.created"

// ExpenseCreatedMessage carries the full record so consumers need no database access.
type ExpenseCreatedMessage struct {
	Type      string         `json:"type"`
	Expense   ExpensePayload `json:"expense"`
	Timestamp time.Time      `json:"timestamp"`
}

type ExpensePayload struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountPaise    int64  `json:"amount_paise"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	Date           string `json:"date"`
	CreatedAt      string `json:"created_at"`
}

func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		Type: EventExpenseCreated,
		Expense: ExpensePayload{
			ID:             e.ID,
			IdempotencyKey: e.IdempotencyKey,
			AmountPaise:    e.AmountMinorUnits,
			Category:       e.Category,
			Description:    e.Description,
			Date:           e.Date,
			CreatedAt:      e.CreatedAt,
		},
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToExpense returns the record carried by the message.
func (m *ExpenseCreatedMessage) ToExpense() core.Expense {
	p := m.Expense
	return core.Expense{
		ID:               p.ID,
		IdempotencyKey:   p.IdempotencyKey,
		AmountMinorUnits: p.AmountPaise,
		Category:         p.Category,
		Description:      p.Description,
		Date:             p.Date,
		CreatedAt:        p.CreatedAt,
	}
}

// ExpenseCreatedMessageFromJSON decodes and sanity checks a message body.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != EventExpenseCreated {
		return nil, fmt.Errorf("unexpected event type %q", msg.Type)
	}
	if msg.Expense.ID == "" {
		return nil, fmt.Errorf("event without expense id")
	}
	return &msg, nil
}
