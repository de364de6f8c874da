// Package models - webhook.go defines webhook endpoint configuration. Delivery is out of this service's hands;
// LastDelivered and SuccessRate are written by the delivery pipeline.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// StringList is a []string persisted as a JSONB array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}

// Webhook is an event subscription owned by a company.
type Webhook struct {
	ID            int64           `json:"id" db:"id"`
	CompanyID     int64           `json:"company_id" db:"company_id"`
	Name          string          `json:"name" db:"name"`
	URL           string          `json:"url" db:"url"`
	Events        StringList      `json:"events" db:"events"`
	Status        enums.Status    `json:"status" db:"status"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	LastDelivered *time.Time      `json:"last_delivered,omitempty" db:"last_delivered"`
	SuccessRate   decimal.Decimal `json:"success_rate" db:"success_rate"` // 0..1
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
