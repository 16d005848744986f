package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/internal/domain/service"
	"nexus/pkg/errors"
	"nexus/pkg/logger"
)

// Message edit policies.
const (
	// EditPolicySender re-checks the stored sender's standing, so any party
	// may edit while the original sender still has access.
	EditPolicySender = "sender"
	// EditPolicyCaller checks the caller's standing and requires the caller
	// to be the stored sender.
	EditPolicyCaller = "caller"
)

type ChatUseCase struct {
	messageRepo repository.MessageRepository
	guard       *service.ChatAccessGuard
	editPolicy  string
}

func NewChatUseCase(
	messageRepo repository.MessageRepository,
	guard *service.ChatAccessGuard,
	editPolicy string,
) *ChatUseCase {
	if editPolicy != EditPolicyCaller {
		editPolicy = EditPolicySender
	}
	return &ChatUseCase{
		messageRepo: messageRepo,
		guard:       guard,
		editPolicy:  editPolicy,
	}
}

type PostMessageInput struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Text       string
	// Timestamp is honoured when the realtime client supplies one.
	Timestamp time.Time
}

type UpdateMessageInput struct {
	Text string
	Read bool
}

func (uc *ChatUseCase) EditPolicy() string {
	return uc.editPolicy
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, caller entity.CallerIdentity, chatID string) ([]*entity.Message, error) {
	if caller.IsZero() {
		return nil, errors.Validation("userId is required")
	}
	if _, err := uc.guard.Authorize(ctx, chatID, caller.UserID); err != nil {
		return nil, err
	}
	return uc.messageRepo.ListByChat(ctx, chatID)
}

func (uc *ChatUseCase) GetMessage(ctx context.Context, caller entity.CallerIdentity, id string) (*entity.Message, error) {
	return uc.resolve(ctx, caller, id, false)
}

// PostMessage persists a message after checking the sender has an accepted
// collaboration on the chat. A non-empty caller must be the sender.
func (uc *ChatUseCase) PostMessage(ctx context.Context, caller entity.CallerIdentity, input PostMessageInput) (*entity.Message, error) {
	input.ChatID = strings.TrimSpace(input.ChatID)
	input.SenderID = strings.TrimSpace(input.SenderID)
	input.SenderName = strings.TrimSpace(input.SenderName)

	if input.ChatID == "" || input.SenderID == "" || input.SenderName == "" || strings.TrimSpace(input.Text) == "" {
		return nil, errors.Validation("senderId, chatId, text, and senderName are required")
	}
	if !caller.IsZero() && caller.UserID != input.SenderID {
		return nil, errors.Unauthorized("senderId does not match the caller")
	}

	if _, err := uc.guard.Authorize(ctx, input.ChatID, input.SenderID); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.New().String()
	}
	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	message := &entity.Message{
		ID:         id,
		ChatID:     input.ChatID,
		SenderID:   input.SenderID,
		SenderName: input.SenderName,
		Text:       input.Text,
		Timestamp:  ts.UTC(),
		Read:       false,
	}
	if err := uc.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	logger.Debug("Message %s saved on chat %s by %s", message.ID, message.ChatID, message.SenderID)
	return message, nil
}

// UpdateMessage replaces the text when one is given; read only ever flips
// to true.
func (uc *ChatUseCase) UpdateMessage(ctx context.Context, caller entity.CallerIdentity, id string, input UpdateMessageInput) (*entity.Message, error) {
	message, err := uc.resolve(ctx, caller, id, true)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Text) != "" {
		message.Text = input.Text
	}
	message.Read = message.Read || input.Read

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (uc *ChatUseCase) DeleteMessage(ctx context.Context, caller entity.CallerIdentity, id string) error {
	message, err := uc.resolve(ctx, caller, id, true)
	if err != nil {
		return err
	}
	if err := uc.messageRepo.Delete(ctx, message.ID); err != nil {
		return err
	}

	logger.Info("Message %s deleted from chat %s", message.ID, message.ChatID)
	return nil
}

// MarkRead flips the read flag for realtime read receipts.
func (uc *ChatUseCase) MarkRead(ctx context.Context, messageID string) (*entity.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, errors.Validation("messageId is required")
	}
	return uc.messageRepo.MarkRead(ctx, messageID)
}

// resolve loads the message and authorizes access to it under the configured
// edit policy. With the caller policy, edits also require authorship.
func (uc *ChatUseCase) resolve(ctx context.Context, caller entity.CallerIdentity, id string, edit bool) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch uc.editPolicy {
	case EditPolicyCaller:
		if caller.IsZero() {
			return nil, errors.Validation("userId is required")
		}
		if _, err := uc.guard.Authorize(ctx, message.ChatID, caller.UserID); err != nil {
			return nil, err
		}
		if edit && caller.UserID != message.SenderID {
			return nil, errors.Unauthorized("Only the sender can change this message")
		}
	default:
		if _, err := uc.guard.Authorize(ctx, message.ChatID, message.SenderID); err != nil {
			if errors.Is(err, errors.CodeForbidden) {
				return nil, errors.Forbidden("Unauthorized access to message", err)
			}
			return nil, err
		}
	}
	return message, nil
}
