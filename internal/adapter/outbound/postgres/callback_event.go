package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"github.com/sokoni/server/internal/shared/database"
	"gorm.io/gorm"
)

// callbackEventAdapter implements outbound.CallbackEventDatabasePort.
type callbackEventAdapter struct {
	db *gorm.DB
}

// NewCallbackEventAdapter creates a new callback event database adapter.
func NewCallbackEventAdapter(db *gorm.DB) outbound.CallbackEventDatabasePort {
	return &callbackEventAdapter{db: db}
}

func (a *callbackEventAdapter) Create(ctx context.Context, event *model.CallbackEvent) error {
	if err := database.Conn(ctx, a.db).Create(event).Error; err != nil {
		return fmt.Errorf("create callback event: %w", err)
	}
	return nil
}

func (a *callbackEventAdapter) MarkProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":    true,
		"processed_at": now,
	}
	if processErr != nil {
		updates["error"] = processErr.Error()
	}
	err := database.Conn(ctx, a.db).
		Model(&model.CallbackEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark callback event processed: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.CallbackEventDatabasePort = (*callbackEventAdapter)(nil)
