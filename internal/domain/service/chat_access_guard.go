package service

import (
	"context"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

// ChatAccessGuard decides who may read or write a chat channel. Standing is
// looked up on every call, so revoking a collaboration takes effect at once.
type ChatAccessGuard struct {
	collabRepo repository.CollaborationRepository
}

func NewChatAccessGuard(collabRepo repository.CollaborationRepository) *ChatAccessGuard {
	return &ChatAccessGuard{collabRepo: collabRepo}
}

// Authorize returns the accepted collaboration on chatID that has userID as
// requester or recipient.
func (g *ChatAccessGuard) Authorize(ctx context.Context, chatID, userID string) (*entity.Collaboration, error) {
	if chatID == "" || userID == "" {
		return nil, errors.Forbidden("Access denied: no accepted collaboration", nil)
	}

	collab, err := g.collabRepo.FindAccepted(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Forbidden("Access denied: no accepted collaboration", nil)
		}
		return nil, err
	}
	return collab, nil
}
