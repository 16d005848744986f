package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/internal/infrastructure/metrics"
	"nexus/pkg/errors"
	"nexus/pkg/logger"
)

type CollaborationUseCase struct {
	collabRepo repository.CollaborationRepository
	userRepo   repository.UserRepository
	notifier   Notifier
	metrics    *metrics.Collector
}

func NewCollaborationUseCase(
	collabRepo repository.CollaborationRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	collector *metrics.Collector,
) *CollaborationUseCase {
	return &CollaborationUseCase{
		collabRepo: collabRepo,
		userRepo:   userRepo,
		notifier:   orNoop(notifier),
		metrics:    collector,
	}
}

type CreateCollaborationInput struct {
	RequesterID string
	RecipientID string
	// ChatID attaches the new record to an existing channel. Empty means a
	// fresh channel.
	ChatID string
}

type CollaborationView struct {
	*entity.Collaboration
	Requester entity.UserSummary `json:"requester"`
	Recipient entity.UserSummary `json:"recipient"`
}

func (uc *CollaborationUseCase) CreateCollaboration(ctx context.Context, input CreateCollaborationInput) (*entity.Collaboration, error) {
	input.RequesterID = strings.TrimSpace(input.RequesterID)
	input.RecipientID = strings.TrimSpace(input.RecipientID)

	if input.RequesterID == "" || input.RecipientID == "" {
		return nil, errors.Validation("requesterId and recipientId are required")
	}
	if input.RequesterID == input.RecipientID {
		return nil, errors.Validation("requesterId and recipientId must differ")
	}

	chatID := strings.TrimSpace(input.ChatID)
	if chatID == "" {
		chatID = uuid.New().String()
	} else {
		taken, err := uc.collabRepo.HasAccepted(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errors.Conflict("Chat already has an accepted collaboration")
		}
	}

	now := time.Now().UTC()
	collab := &entity.Collaboration{
		ID:          uuid.New().String(),
		RequesterID: input.RequesterID,
		RecipientID: input.RecipientID,
		Status:      entity.StatusPending,
		ChatID:      chatID,
		CreatedAt:   now,
	}

	err := uc.collabRepo.Create(ctx, collab)
	uc.metrics.RecordTransition("collaboration", "create", outcome(err))
	if err != nil {
		return nil, err
	}

	logger.Info("Collaboration %s created on chat %s", collab.ID, collab.ChatID)
	notifyParties(uc.notifier, EventCollaborationUpdated, collab.RequesterID, collab.RecipientID)
	return collab, nil
}

// ListCollaborations returns the caller's collaborations in the given
// status, accepted when status is empty.
func (uc *CollaborationUseCase) ListCollaborations(ctx context.Context, caller entity.CallerIdentity, status string) ([]*CollaborationView, error) {
	if caller.IsZero() {
		return nil, errors.Validation("userId is required")
	}
	if status == "" {
		status = entity.StatusAccepted
	}

	collabs, err := uc.collabRepo.ListByParty(ctx, caller.UserID, status)
	if err != nil {
		return nil, err
	}

	lookup := newSummaryLookup(uc.userRepo)
	views := make([]*CollaborationView, 0, len(collabs))
	for _, c := range collabs {
		views = append(views, &CollaborationView{
			Collaboration: c,
			Requester:     lookup.get(ctx, c.RequesterID),
			Recipient:     lookup.get(ctx, c.RecipientID),
		})
	}
	return views, nil
}

func (uc *CollaborationUseCase) ListAllCollaborations(ctx context.Context) ([]*entity.Collaboration, error) {
	return uc.collabRepo.ListAll(ctx)
}

// AcceptCollaboration accepts a pending collaboration and removes the other
// pending or rejected records on its chat in the same step.
func (uc *CollaborationUseCase) AcceptCollaboration(ctx context.Context, caller entity.CallerIdentity, id string) (*AcceptResult, error) {
	collab, err := uc.resolvePending(ctx, caller, id)
	if err != nil {
		uc.metrics.RecordTransition("collaboration", "accept", outcome(err))
		return nil, err
	}

	accepted, removed, err := uc.collabRepo.Accept(ctx, collab.ID, time.Now().UTC())
	uc.metrics.RecordTransition("collaboration", "accept", outcome(err))
	if err != nil {
		return nil, err
	}

	logger.Info("Collaboration %s accepted by %s, removed %d duplicates on chat %s", accepted.ID, caller.UserID, removed, accepted.ChatID)
	notifyParties(uc.notifier, EventCollaborationUpdated, accepted.RequesterID, accepted.RecipientID)

	return &AcceptResult{Message: "Collaboration accepted", ChatID: accepted.ChatID}, nil
}

func (uc *CollaborationUseCase) RejectCollaboration(ctx context.Context, caller entity.CallerIdentity, id string) error {
	collab, err := uc.resolvePending(ctx, caller, id)
	if err == nil {
		_, err = uc.collabRepo.DeletePending(ctx, collab.ID)
	}
	uc.metrics.RecordTransition("collaboration", "reject", outcome(err))
	if err != nil {
		return err
	}

	logger.Info("Collaboration %s rejected by %s", collab.ID, caller.UserID)
	notifyParties(uc.notifier, EventCollaborationUpdated, collab.RequesterID, collab.RecipientID)
	return nil
}

// UpdateCollaborationStatus sets an arbitrary status. Moving to accepted
// goes through AcceptCollaboration so duplicates are still cleaned up; any
// other move is a compare-and-swap from the status read here.
func (uc *CollaborationUseCase) UpdateCollaborationStatus(ctx context.Context, caller entity.CallerIdentity, id, status string) (*entity.Collaboration, error) {
	if !entity.IsValidStatus(status) {
		return nil, errors.Validation("status must be one of: pending, accepted, rejected")
	}
	target := entity.NormalizeStatus(status)

	if target == entity.StatusAccepted {
		if _, err := uc.AcceptCollaboration(ctx, caller, id); err != nil {
			return nil, err
		}
		return uc.collabRepo.GetByID(ctx, id)
	}

	if caller.IsZero() {
		return nil, errors.Validation("userId is required")
	}
	current, err := uc.collabRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsParty(caller.UserID) {
		return nil, errors.Unauthorized("Only a party to the collaboration can change it")
	}

	from := entity.NormalizeStatus(current.Status)
	if from == target {
		return current, nil
	}

	updated, err := uc.collabRepo.SetStatus(ctx, id, from, target, time.Now().UTC())
	uc.metrics.RecordTransition("collaboration", "set_"+target, outcome(err))
	if err != nil {
		return nil, err
	}

	if from == entity.StatusAccepted {
		logger.Info("Collaboration %s moved from accepted to %s, chat %s closed", id, target, updated.ChatID)
	}
	notifyParties(uc.notifier, EventCollaborationUpdated, updated.RequesterID, updated.RecipientID)
	return updated, nil
}

func (uc *CollaborationUseCase) resolvePending(ctx context.Context, caller entity.CallerIdentity, id string) (*entity.Collaboration, error) {
	if caller.IsZero() {
		return nil, errors.Validation("userId is required in request body")
	}

	collab, err := uc.collabRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.NormalizeStatus(collab.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Collaboration already processed")
	}
	if !collab.IsParty(caller.UserID) {
		return nil, errors.Unauthorized("Only a party to the collaboration can resolve it")
	}
	return collab, nil
}
