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

type RequestUseCase struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	metrics     *metrics.Collector
}

func NewRequestUseCase(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	collector *metrics.Collector,
) *RequestUseCase {
	return &RequestUseCase{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		notifier:    orNoop(notifier),
		metrics:     collector,
	}
}

type CreateRequestInput struct {
	InvestorID     string
	EntrepreneurID string
	InvestorName   string
	ProfileSnippet string
}

// RequestView is a request with both parties' summaries attached.
type RequestView struct {
	*entity.Request
	Investor     entity.UserSummary `json:"investor"`
	Entrepreneur entity.UserSummary `json:"entrepreneur"`
}

// AcceptResult is returned by accept on both requests and collaborations.
type AcceptResult struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId"`
}

func (uc *RequestUseCase) CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.Request, error) {
	input.InvestorID = strings.TrimSpace(input.InvestorID)
	input.EntrepreneurID = strings.TrimSpace(input.EntrepreneurID)
	input.InvestorName = strings.TrimSpace(input.InvestorName)

	if input.InvestorID == "" || input.EntrepreneurID == "" || input.InvestorName == "" {
		return nil, errors.Validation("investorId, entrepreneurId, and investorName are required")
	}
	if input.InvestorID == input.EntrepreneurID {
		return nil, errors.Validation("investorId and entrepreneurId must differ")
	}

	request := &entity.Request{
		ID:             uuid.New().String(),
		InvestorID:     input.InvestorID,
		EntrepreneurID: input.EntrepreneurID,
		InvestorName:   input.InvestorName,
		ProfileSnippet: input.ProfileSnippet,
		Status:         entity.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	err := uc.requestRepo.Create(ctx, request)
	uc.metrics.RecordTransition("request", "create", outcome(err))
	if err != nil {
		return nil, err
	}

	logger.Info("Request %s created: investor=%s entrepreneur=%s", request.ID, request.InvestorID, request.EntrepreneurID)
	notifyParties(uc.notifier, EventRequestUpdated, request.InvestorID, request.EntrepreneurID)
	return request, nil
}

// ListRequests returns the caller's requests in the given status, pending
// when status is empty.
func (uc *RequestUseCase) ListRequests(ctx context.Context, caller entity.CallerIdentity, status string) ([]*RequestView, error) {
	if caller.IsZero() {
		return nil, errors.Validation("userId is required")
	}
	if status == "" {
		status = entity.StatusPending
	}

	requests, err := uc.requestRepo.ListByParty(ctx, caller.UserID, status)
	if err != nil {
		return nil, err
	}

	lookup := newSummaryLookup(uc.userRepo)
	views := make([]*RequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, &RequestView{
			Request:      r,
			Investor:     lookup.get(ctx, r.InvestorID),
			Entrepreneur: lookup.get(ctx, r.EntrepreneurID),
		})
	}
	return views, nil
}

func (uc *RequestUseCase) ListAllRequests(ctx context.Context) ([]*entity.Request, error) {
	return uc.requestRepo.ListAll(ctx)
}

// AcceptRequest turns a pending request into an accepted collaboration on a
// new chat channel. Only the entrepreneur may accept.
func (uc *RequestUseCase) AcceptRequest(ctx context.Context, caller entity.CallerIdentity, requestID string) (*AcceptResult, error) {
	request, err := uc.resolvePending(ctx, caller, requestID)
	if err != nil {
		uc.metrics.RecordTransition("request", "accept", outcome(err))
		return nil, err
	}

	now := time.Now().UTC()
	collab := &entity.Collaboration{
		ID:          uuid.New().String(),
		RequesterID: request.InvestorID,
		RecipientID: request.EntrepreneurID,
		Status:      entity.StatusAccepted,
		ChatID:      uuid.New().String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = uc.requestRepo.Convert(ctx, request.ID, collab)
	uc.metrics.RecordTransition("request", "accept", outcome(err))
	if err != nil {
		return nil, err
	}

	logger.Info("Request %s accepted by %s, chat %s opened", request.ID, caller.UserID, collab.ChatID)
	notifyParties(uc.notifier, EventRequestUpdated, request.InvestorID, request.EntrepreneurID)
	notifyParties(uc.notifier, EventCollaborationUpdated, request.InvestorID, request.EntrepreneurID)

	return &AcceptResult{Message: "Request accepted", ChatID: collab.ChatID}, nil
}

func (uc *RequestUseCase) RejectRequest(ctx context.Context, caller entity.CallerIdentity, requestID string) error {
	request, err := uc.resolvePending(ctx, caller, requestID)
	if err == nil {
		_, err = uc.requestRepo.DeletePending(ctx, request.ID)
	}
	uc.metrics.RecordTransition("request", "reject", outcome(err))
	if err != nil {
		return err
	}

	logger.Info("Request %s rejected by %s", request.ID, caller.UserID)
	notifyParties(uc.notifier, EventRequestUpdated, request.InvestorID, request.EntrepreneurID)
	return nil
}

// resolvePending runs the shared guards in order: not found, not pending,
// caller is not the entrepreneur.
func (uc *RequestUseCase) resolvePending(ctx context.Context, caller entity.CallerIdentity, requestID string) (*entity.Request, error) {
	if caller.IsZero() {
		return nil, errors.Validation("userId is required in request body")
	}

	request, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if entity.NormalizeStatus(request.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Request already processed")
	}
	if request.EntrepreneurID != caller.UserID {
		return nil, errors.Unauthorized("Only the entrepreneur can resolve this request")
	}
	return request, nil
}

// summaryLookup memoises user summaries for one list call. A missing user
// yields an empty summary and a warning.
type summaryLookup struct {
	userRepo repository.UserRepository
	cache    map[string]entity.UserSummary
}

func newSummaryLookup(userRepo repository.UserRepository) *summaryLookup {
	return &summaryLookup{userRepo: userRepo, cache: map[string]entity.UserSummary{}}
}

func (l *summaryLookup) get(ctx context.Context, userID string) entity.UserSummary {
	if s, ok := l.cache[userID]; ok {
		return s
	}

	user, err := l.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.Warn("User not found for summary: id=%s err=%v", userID, err)
		user = nil
	}
	s := user.Summary()
	l.cache[userID] = s
	return s
}
