package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

// FirestoreStore keeps each entity kind in a top-level collection with the
// entity id as the document id. Status and party filters run client side so
// no composite indexes are needed.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Users() repository.UserRepository {
	return &firestoreUserRepository{client: s.client}
}

func (s *FirestoreStore) Requests() repository.RequestRepository {
	return &firestoreRequestRepository{client: s.client}
}

func (s *FirestoreStore) Collaborations() repository.CollaborationRepository {
	return &firestoreCollaborationRepository{client: s.client}
}

func (s *FirestoreStore) Messages() repository.MessageRepository {
	return &firestoreMessageRepository{client: s.client}
}

func isFirestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func collectDocs[T any](iter *firestore.DocumentIterator) ([]*T, error) {
	defer iter.Stop()

	items := []*T{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var item T
		if err := doc.DataTo(&item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, nil
}

// users

type firestoreUserRepository struct {
	client *firestore.Client
}

func (r *firestoreUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	if user.Email != "" {
		if _, err := r.GetByEmail(ctx, user.Email); err == nil {
			return errors.Conflict("Email already registered")
		} else if !errors.Is(err, errors.CodeNotFound) {
			return err
		}
	}

	if _, err := r.client.Collection(usersCollection).Doc(user.ID).Create(ctx, user); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("User id already exists")
		}
		return errors.Internal("Failed to create user", err)
	}
	return nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to decode user", err)
	}
	return &user, nil
}

func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	users, err := collectDocs[entity.User](r.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to get user", err)
	}
	if len(users) == 0 {
		return nil, errors.NotFound("User", nil)
	}
	return users[0], nil
}

func (r *firestoreUserRepository) List(ctx context.Context, role string) ([]*entity.User, error) {
	query := r.client.Collection(usersCollection).Query
	if role != "" {
		query = query.Where("role", "==", role)
	}

	users, err := collectDocs[entity.User](query.Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to list users", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *firestoreUserRepository) Update(ctx context.Context, user *entity.User) error {
	ref := r.client.Collection(usersCollection).Doc(user.ID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isFirestoreNotFound(err) {
				return errors.NotFound("User", err)
			}
			return errors.Internal("Failed to get user", err)
		}
		return tx.Set(ref, user)
	})
}

func (r *firestoreUserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(usersCollection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if isFirestoreNotFound(err) {
			return errors.NotFound("User", err)
		}
		return errors.Internal("Failed to delete user", err)
	}
	return nil
}

// requests

type firestoreRequestRepository struct {
	client *firestore.Client
}

func (r *firestoreRequestRepository) Create(ctx context.Context, request *entity.Request) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	if _, err := r.client.Collection(requestsCollection).Doc(request.ID).Create(ctx, request); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Request id already exists")
		}
		return errors.Internal("Failed to create request", err)
	}
	return nil
}

func (r *firestoreRequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	doc, err := r.client.Collection(requestsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Request", err)
		}
		return nil, errors.Internal("Failed to get request", err)
	}

	var request entity.Request
	if err := doc.DataTo(&request); err != nil {
		return nil, errors.Internal("Failed to decode request", err)
	}
	return &request, nil
}

func (r *firestoreRequestRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Request, error) {
	coll := r.client.Collection(requestsCollection)
	seen := map[string]bool{}
	requests := []*entity.Request{}

	for _, field := range []string{"investorId", "entrepreneurId"} {
		found, err := collectDocs[entity.Request](coll.Where(field, "==", userID).Documents(ctx))
		if err != nil {
			return nil, errors.Internal("Failed to query requests", err)
		}
		for _, req := range found {
			if seen[req.ID] || !strings.EqualFold(req.Status, status) {
				continue
			}
			seen[req.ID] = true
			requests = append(requests, req)
		}
	}

	sortRequests(requests)
	return requests, nil
}

func (r *firestoreRequestRepository) ListAll(ctx context.Context) ([]*entity.Request, error) {
	requests, err := collectDocs[entity.Request](r.client.Collection(requestsCollection).Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to list requests", err)
	}
	sortRequests(requests)
	return requests, nil
}

func (r *firestoreRequestRepository) Convert(ctx context.Context, requestID string, collab *entity.Collaboration) (*entity.Request, error) {
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}

	var request *entity.Request
	reqRef := r.client.Collection(requestsCollection).Doc(requestID)
	collabRef := r.client.Collection(collaborationsCollection).Doc(collab.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		request, err = pendingRequestInTx(tx, reqRef)
		if err != nil {
			return err
		}

		if entity.NormalizeStatus(collab.Status) == entity.StatusAccepted && collab.ChatID != "" {
			accepted, err := acceptedOnChatInTx(tx, r.client, collab.ChatID, collab.ID)
			if err != nil {
				return err
			}
			if accepted {
				return errors.Conflict("Chat already has an accepted collaboration")
			}
		}

		if err := tx.Delete(reqRef); err != nil {
			return err
		}
		return tx.Create(collabRef, collab)
	})
	if err != nil {
		return nil, wrapTxError("Failed to convert request", err)
	}
	return request, nil
}

func (r *firestoreRequestRepository) DeletePending(ctx context.Context, id string) (*entity.Request, error) {
	var request *entity.Request
	ref := r.client.Collection(requestsCollection).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		request, err = pendingRequestInTx(tx, ref)
		if err != nil {
			return err
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return nil, wrapTxError("Failed to delete request", err)
	}
	return request, nil
}

func pendingRequestInTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*entity.Request, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Request", err)
		}
		return nil, err
	}

	var request entity.Request
	if err := doc.DataTo(&request); err != nil {
		return nil, err
	}
	if entity.NormalizeStatus(request.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Request already processed")
	}
	return &request, nil
}

// wrapTxError passes application errors through and wraps anything the
// Firestore client returned.
func wrapTxError(message string, err error) error {
	if errors.IsApp(err) {
		return err
	}
	return errors.Internal(message, err)
}

// collaborations

type firestoreCollaborationRepository struct {
	client *firestore.Client
}

func (r *firestoreCollaborationRepository) Create(ctx context.Context, collab *entity.Collaboration) error {
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	ref := r.client.Collection(collaborationsCollection).Doc(collab.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if entity.NormalizeStatus(collab.Status) == entity.StatusAccepted && collab.ChatID != "" {
			accepted, err := acceptedOnChatInTx(tx, r.client, collab.ChatID, collab.ID)
			if err != nil {
				return err
			}
			if accepted {
				return errors.Conflict("Chat already has an accepted collaboration")
			}
		}
		return tx.Create(ref, collab)
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Collaboration already exists")
		}
		return wrapTxError("Failed to create collaboration", err)
	}
	return nil
}

func (r *firestoreCollaborationRepository) GetByID(ctx context.Context, id string) (*entity.Collaboration, error) {
	doc, err := r.client.Collection(collaborationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Collaboration", err)
		}
		return nil, errors.Internal("Failed to get collaboration", err)
	}

	var collab entity.Collaboration
	if err := doc.DataTo(&collab); err != nil {
		return nil, errors.Internal("Failed to decode collaboration", err)
	}
	return &collab, nil
}

func (r *firestoreCollaborationRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Collaboration, error) {
	coll := r.client.Collection(collaborationsCollection)
	seen := map[string]bool{}
	collabs := []*entity.Collaboration{}

	for _, field := range []string{"requesterId", "recipientId"} {
		found, err := collectDocs[entity.Collaboration](coll.Where(field, "==", userID).Documents(ctx))
		if err != nil {
			return nil, errors.Internal("Failed to query collaborations", err)
		}
		for _, c := range found {
			if seen[c.ID] || !strings.EqualFold(c.Status, status) {
				continue
			}
			seen[c.ID] = true
			collabs = append(collabs, c)
		}
	}

	sortCollaborations(collabs)
	return collabs, nil
}

func (r *firestoreCollaborationRepository) ListAll(ctx context.Context) ([]*entity.Collaboration, error) {
	collabs, err := collectDocs[entity.Collaboration](r.client.Collection(collaborationsCollection).Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to list collaborations", err)
	}
	sortCollaborations(collabs)
	return collabs, nil
}

func (r *firestoreCollaborationRepository) onChat(ctx context.Context, chatID string) ([]*entity.Collaboration, error) {
	collabs, err := collectDocs[entity.Collaboration](r.client.Collection(collaborationsCollection).Where("chatId", "==", chatID).Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to query collaborations", err)
	}
	return collabs, nil
}

func (r *firestoreCollaborationRepository) FindAccepted(ctx context.Context, chatID, userID string) (*entity.Collaboration, error) {
	collabs, err := r.onChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, c := range collabs {
		if entity.NormalizeStatus(c.Status) == entity.StatusAccepted && c.IsParty(userID) {
			return c, nil
		}
	}
	return nil, errors.NotFound("Accepted collaboration", nil)
}

func (r *firestoreCollaborationRepository) HasAccepted(ctx context.Context, chatID string) (bool, error) {
	collabs, err := r.onChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, c := range collabs {
		if entity.NormalizeStatus(c.Status) == entity.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *firestoreCollaborationRepository) Accept(ctx context.Context, id string, at time.Time) (*entity.Collaboration, int, error) {
	var accepted *entity.Collaboration
	removed := 0
	ref := r.client.Collection(collaborationsCollection).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removed = 0

		collab, err := collaborationInTx(tx, ref)
		if err != nil {
			return err
		}
		if entity.NormalizeStatus(collab.Status) != entity.StatusPending {
			return errors.InvalidState("Collaboration already processed")
		}

		docs, err := tx.Documents(r.client.Collection(collaborationsCollection).Where("chatId", "==", collab.ChatID)).GetAll()
		if err != nil {
			return err
		}

		var stale []*firestore.DocumentRef
		for _, doc := range docs {
			if doc.Ref.ID == id {
				continue
			}
			var other entity.Collaboration
			if err := doc.DataTo(&other); err != nil {
				return err
			}
			switch entity.NormalizeStatus(other.Status) {
			case entity.StatusAccepted:
				return errors.Conflict("Chat already has an accepted collaboration")
			case entity.StatusPending, entity.StatusRejected:
				stale = append(stale, doc.Ref)
			}
		}

		collab.Status = entity.StatusAccepted
		collab.UpdatedAt = at
		if err := tx.Set(ref, collab); err != nil {
			return err
		}
		for _, staleRef := range stale {
			if err := tx.Delete(staleRef); err != nil {
				return err
			}
		}

		accepted = collab
		removed = len(stale)
		return nil
	})
	if err != nil {
		return nil, 0, wrapTxError("Failed to accept collaboration", err)
	}
	return accepted, removed, nil
}

func (r *firestoreCollaborationRepository) SetStatus(ctx context.Context, id, from, to string, at time.Time) (*entity.Collaboration, error) {
	var updated *entity.Collaboration
	ref := r.client.Collection(collaborationsCollection).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		collab, err := collaborationInTx(tx, ref)
		if err != nil {
			return err
		}
		if !strings.EqualFold(collab.Status, from) {
			return errors.InvalidState("Collaboration already processed")
		}

		if entity.NormalizeStatus(to) == entity.StatusAccepted {
			accepted, err := acceptedOnChatInTx(tx, r.client, collab.ChatID, id)
			if err != nil {
				return err
			}
			if accepted {
				return errors.Conflict("Chat already has an accepted collaboration")
			}
		}

		collab.Status = to
		collab.UpdatedAt = at
		updated = collab
		return tx.Set(ref, collab)
	})
	if err != nil {
		return nil, wrapTxError("Failed to update collaboration", err)
	}
	return updated, nil
}

func (r *firestoreCollaborationRepository) DeletePending(ctx context.Context, id string) (*entity.Collaboration, error) {
	var deleted *entity.Collaboration
	ref := r.client.Collection(collaborationsCollection).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		collab, err := collaborationInTx(tx, ref)
		if err != nil {
			return err
		}
		if entity.NormalizeStatus(collab.Status) != entity.StatusPending {
			return errors.InvalidState("Collaboration already processed")
		}
		deleted = collab
		return tx.Delete(ref)
	})
	if err != nil {
		return nil, wrapTxError("Failed to delete collaboration", err)
	}
	return deleted, nil
}

func collaborationInTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*entity.Collaboration, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Collaboration", err)
		}
		return nil, err
	}

	var collab entity.Collaboration
	if err := doc.DataTo(&collab); err != nil {
		return nil, err
	}
	return &collab, nil
}

func acceptedOnChatInTx(tx *firestore.Transaction, client *firestore.Client, chatID, excludeID string) (bool, error) {
	docs, err := tx.Documents(client.Collection(collaborationsCollection).Where("chatId", "==", chatID)).GetAll()
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if doc.Ref.ID == excludeID {
			continue
		}
		var c entity.Collaboration
		if err := doc.DataTo(&c); err != nil {
			return false, err
		}
		if entity.NormalizeStatus(c.Status) == entity.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

// messages

type firestoreMessageRepository struct {
	client *firestore.Client
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if _, err := r.client.Collection(messagesCollection).Doc(message.ID).Create(ctx, message); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Message id already exists")
		}
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection(messagesCollection).Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to decode message", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) ListByChat(ctx context.Context, chatID string) ([]*entity.Message, error) {
	messages, err := collectDocs[entity.Message](r.client.Collection(messagesCollection).Where("chatId", "==", chatID).Documents(ctx))
	if err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

func (r *firestoreMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	ref := r.client.Collection(messagesCollection).Doc(message.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isFirestoreNotFound(err) {
				return errors.NotFound("Message", err)
			}
			return err
		}
		return tx.Set(ref, message)
	})
	if err != nil {
		return wrapTxError("Failed to update message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(messagesCollection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if isFirestoreNotFound(err) {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, id string) (*entity.Message, error) {
	ref := r.client.Collection(messagesCollection).Doc(id)
	if _, err := ref.Update(ctx, []firestore.Update{{Path: "read", Value: true}}); err != nil {
		if isFirestoreNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to mark message as read", err)
	}
	return r.GetByID(ctx, id)
}
