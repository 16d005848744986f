package repository

import (
	"context"

	"nexus/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListByChat returns messages ordered by timestamp ascending.
	ListByChat(ctx context.Context, chatID string) ([]*entity.Message, error)
	Update(ctx context.Context, message *entity.Message) error
	Delete(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) (*entity.Message, error)
}
