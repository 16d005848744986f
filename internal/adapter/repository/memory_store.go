package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

// MemoryStore keeps every entity kind in process memory. All four
// repositories share one lock so multi-record transitions are atomic.
type MemoryStore struct {
	mu             sync.RWMutex
	users          map[string]*entity.User
	requests       map[string]*entity.Request
	collaborations map[string]*entity.Collaboration
	messages       map[string]*entity.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[string]*entity.User),
		requests:       make(map[string]*entity.Request),
		collaborations: make(map[string]*entity.Collaboration),
		messages:       make(map[string]*entity.Message),
	}
}

func (s *MemoryStore) Users() repository.UserRepository {
	return &memoryUserRepository{s}
}

func (s *MemoryStore) Requests() repository.RequestRepository {
	return &memoryRequestRepository{s}
}

func (s *MemoryStore) Collaborations() repository.CollaborationRepository {
	return &memoryCollaborationRepository{s}
}

func (s *MemoryStore) Messages() repository.MessageRepository {
	return &memoryMessageRepository{s}
}

// users

type memoryUserRepository struct{ s *MemoryStore }

// cloneUser copies u including its slices and map, so stored users never
// alias a caller's value.
func cloneUser(u *entity.User) *entity.User {
	cp := *u
	cp.Interests = slices.Clone(u.Interests)
	cp.Portfolio = slices.Clone(u.Portfolio)
	cp.SocialLinks = maps.Clone(u.SocialLinks)
	return &cp
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, ok := r.s.users[user.ID]; ok {
		return errors.Conflict("User id already exists")
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.Conflict("Email already registered")
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return cloneUser(u), nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (r *memoryUserRepository) List(ctx context.Context, role string) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if role != "" && u.Role != role {
			continue
		}
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return errors.NotFound("User", nil)
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return errors.NotFound("User", nil)
	}
	delete(r.s.users, id)
	return nil
}

// requests

type memoryRequestRepository struct{ s *MemoryStore }

func (r *memoryRequestRepository) Create(ctx context.Context, request *entity.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	if _, ok := r.s.requests[request.ID]; ok {
		return errors.Conflict("Request id already exists")
	}
	cp := *request
	r.s.requests[request.ID] = &cp
	return nil
}

func (r *memoryRequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, errors.NotFound("Request", nil)
	}
	cp := *req
	return &cp, nil
}

func (r *memoryRequestRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Request
	for _, req := range r.s.requests {
		if !req.IsParty(userID) || !strings.EqualFold(req.Status, status) {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sortRequests(out)
	return out, nil
}

func (r *memoryRequestRepository) ListAll(ctx context.Context) ([]*entity.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.Request, 0, len(r.s.requests))
	for _, req := range r.s.requests {
		cp := *req
		out = append(out, &cp)
	}
	sortRequests(out)
	return out, nil
}

func (r *memoryRequestRepository) Convert(ctx context.Context, requestID string, collab *entity.Collaboration) (*entity.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, err := r.s.takePendingRequest(requestID)
	if err != nil {
		return nil, err
	}
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	cp := *collab
	r.s.collaborations[collab.ID] = &cp
	return req, nil
}

func (r *memoryRequestRepository) DeletePending(ctx context.Context, id string) (*entity.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.takePendingRequest(id)
}

// takePendingRequest must be called with the write lock held.
func (s *MemoryStore) takePendingRequest(id string) (*entity.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFound("Request", nil)
	}
	if entity.NormalizeStatus(req.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Request already processed")
	}
	delete(s.requests, id)
	return req, nil
}

func sortRequests(requests []*entity.Request) {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}

// collaborations

type memoryCollaborationRepository struct{ s *MemoryStore }

func (r *memoryCollaborationRepository) Create(ctx context.Context, collab *entity.Collaboration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	if _, ok := r.s.collaborations[collab.ID]; ok {
		return errors.Conflict("Collaboration id already exists")
	}
	if entity.NormalizeStatus(collab.Status) == entity.StatusAccepted && r.s.acceptedOn(collab.ChatID, "") != nil {
		return errors.Conflict("Chat already has an accepted collaboration")
	}
	cp := *collab
	r.s.collaborations[collab.ID] = &cp
	return nil
}

func (r *memoryCollaborationRepository) GetByID(ctx context.Context, id string) (*entity.Collaboration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.collaborations[id]
	if !ok {
		return nil, errors.NotFound("Collaboration", nil)
	}
	cp := *c
	return &cp, nil
}

func (r *memoryCollaborationRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Collaboration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Collaboration
	for _, c := range r.s.collaborations {
		if !c.IsParty(userID) || !strings.EqualFold(c.Status, status) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortCollaborations(out)
	return out, nil
}

func (r *memoryCollaborationRepository) ListAll(ctx context.Context) ([]*entity.Collaboration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.Collaboration, 0, len(r.s.collaborations))
	for _, c := range r.s.collaborations {
		cp := *c
		out = append(out, &cp)
	}
	sortCollaborations(out)
	return out, nil
}

func (r *memoryCollaborationRepository) FindAccepted(ctx context.Context, chatID, userID string) (*entity.Collaboration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.collaborations {
		if c.ChatID == chatID && entity.NormalizeStatus(c.Status) == entity.StatusAccepted && c.IsParty(userID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.NotFound("Accepted collaboration", nil)
}

func (r *memoryCollaborationRepository) HasAccepted(ctx context.Context, chatID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.acceptedOn(chatID, "") != nil, nil
}

func (r *memoryCollaborationRepository) Accept(ctx context.Context, id string, at time.Time) (*entity.Collaboration, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.collaborations[id]
	if !ok {
		return nil, 0, errors.NotFound("Collaboration", nil)
	}
	if entity.NormalizeStatus(c.Status) != entity.StatusPending {
		return nil, 0, errors.InvalidState("Collaboration already processed")
	}
	if r.s.acceptedOn(c.ChatID, id) != nil {
		return nil, 0, errors.Conflict("Chat already has an accepted collaboration")
	}

	c.Status = entity.StatusAccepted
	c.UpdatedAt = at

	removed := 0
	for otherID, other := range r.s.collaborations {
		if otherID == id || other.ChatID != c.ChatID {
			continue
		}
		switch entity.NormalizeStatus(other.Status) {
		case entity.StatusPending, entity.StatusRejected:
			delete(r.s.collaborations, otherID)
			removed++
		}
	}

	cp := *c
	return &cp, removed, nil
}

func (r *memoryCollaborationRepository) SetStatus(ctx context.Context, id, from, to string, at time.Time) (*entity.Collaboration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.collaborations[id]
	if !ok {
		return nil, errors.NotFound("Collaboration", nil)
	}
	if entity.NormalizeStatus(c.Status) != from {
		return nil, errors.InvalidState("Collaboration status changed concurrently")
	}
	if to == entity.StatusAccepted && r.s.acceptedOn(c.ChatID, id) != nil {
		return nil, errors.Conflict("Chat already has an accepted collaboration")
	}
	c.Status = to
	c.UpdatedAt = at
	cp := *c
	return &cp, nil
}

func (r *memoryCollaborationRepository) DeletePending(ctx context.Context, id string) (*entity.Collaboration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.collaborations[id]
	if !ok {
		return nil, errors.NotFound("Collaboration", nil)
	}
	if entity.NormalizeStatus(c.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Collaboration already processed")
	}
	delete(r.s.collaborations, id)
	return c, nil
}

// acceptedOn must be called with the lock held.
func (s *MemoryStore) acceptedOn(chatID, exceptID string) *entity.Collaboration {
	for id, c := range s.collaborations {
		if id != exceptID && c.ChatID == chatID && entity.NormalizeStatus(c.Status) == entity.StatusAccepted {
			return c
		}
	}
	return nil
}

func sortCollaborations(collabs []*entity.Collaboration) {
	sort.Slice(collabs, func(i, j int) bool {
		if collabs[i].CreatedAt.Equal(collabs[j].CreatedAt) {
			return collabs[i].ID < collabs[j].ID
		}
		return collabs[i].CreatedAt.Before(collabs[j].CreatedAt)
	})
}

// messages

type memoryMessageRepository struct{ s *MemoryStore }

func (r *memoryMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if _, ok := r.s.messages[message.ID]; ok {
		return errors.Conflict("Message id already exists")
	}
	cp := *message
	r.s.messages[message.ID] = &cp
	return nil
}

func (r *memoryMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMessageRepository) ListByChat(ctx context.Context, chatID string) ([]*entity.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Message
	for _, m := range r.s.messages {
		if m.ChatID == chatID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *memoryMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[message.ID]; !ok {
		return errors.NotFound("Message", nil)
	}
	cp := *message
	r.s.messages[message.ID] = &cp
	return nil
}

func (r *memoryMessageRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[id]; !ok {
		return errors.NotFound("Message", nil)
	}
	delete(r.s.messages, id)
	return nil
}

func (r *memoryMessageRepository) MarkRead(ctx context.Context, id string) (*entity.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	m.Read = true
	cp := *m
	return &cp, nil
}
