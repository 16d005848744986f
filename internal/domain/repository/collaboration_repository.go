package repository

import (
	"context"
	"time"

	"nexus/internal/domain/entity"
)

type CollaborationRepository interface {
	Create(ctx context.Context, collab *entity.Collaboration) error
	GetByID(ctx context.Context, id string) (*entity.Collaboration, error)
	ListByParty(ctx context.Context, userID, status string) ([]*entity.Collaboration, error)
	ListAll(ctx context.Context) ([]*entity.Collaboration, error)
	// FindAccepted returns the accepted collaboration on chatID that has
	// userID as a party, or NOT_FOUND.
	FindAccepted(ctx context.Context, chatID, userID string) (*entity.Collaboration, error)
	// HasAccepted reports whether any accepted collaboration uses chatID.
	HasAccepted(ctx context.Context, chatID string) (bool, error)

	// Accept moves a pending collaboration to accepted and deletes every other
	// pending or rejected collaboration on the same chat, as one step. It
	// fails with INVALID_STATE if the record is no longer pending and CONFLICT
	// if another accepted collaboration already holds the chat.
	Accept(ctx context.Context, id string, at time.Time) (*entity.Collaboration, int, error)
	// SetStatus changes status from -> to, failing with INVALID_STATE if the
	// stored status is no longer from.
	SetStatus(ctx context.Context, id, from, to string, at time.Time) (*entity.Collaboration, error)
	DeletePending(ctx context.Context, id string) (*entity.Collaboration, error)
}
