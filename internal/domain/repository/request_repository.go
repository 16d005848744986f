package repository

import (
	"context"

	"nexus/internal/domain/entity"
)

type RequestRepository interface {
	Create(ctx context.Context, request *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)
	// ListByParty returns requests where userID is investor or entrepreneur
	// and the status matches case-insensitively.
	ListByParty(ctx context.Context, userID, status string) ([]*entity.Request, error)
	ListAll(ctx context.Context) ([]*entity.Request, error)

	// Convert removes the request if it is still pending and inserts collab in
	// the same step. It fails with INVALID_STATE when the request was already
	// resolved and NOT_FOUND when it no longer exists.
	Convert(ctx context.Context, requestID string, collab *entity.Collaboration) (*entity.Request, error)
	// DeletePending removes the request only while it is pending.
	DeletePending(ctx context.Context, id string) (*entity.Request, error)
}
