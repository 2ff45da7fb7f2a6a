package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

type Admission int

const (
	Admitted Admission = iota + 1
	Duplicate
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// Guard deduplicates processor events on the store's unique index, never
// on a read-then-insert.
type Guard struct {
	db *gorm.DB
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

func (g *Guard) Admit(ctx context.Context, eventID, eventType string, snapshot map[string]any) (Admission, error) {
	if eventID == "" {
		return 0, fmt.Errorf("admit: empty event id")
	}
	var payload datatypes.JSON
	if len(snapshot) > 0 {
		b, err := json.Marshal(snapshot)
		if err != nil {
			return 0, fmt.Errorf("admit: encode snapshot: %w", err)
		}
		payload = b
	}

	row := billing.EventLog{EventID: eventID, Type: eventType, Payload: payload}
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("admit %s: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return Duplicate, nil
	}
	return Admitted, nil
}
