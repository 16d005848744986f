package repository

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
	"nexus/pkg/logger"
)

const (
	usersCollection          = "users"
	requestsCollection       = "requests"
	collaborationsCollection = "collaborations"
	messagesCollection       = "messages"
)

// MongoStore keeps each entity kind in its own collection keyed by the
// string "id" field, the same shape the documents had before the rewrite.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Users() repository.UserRepository {
	return &mongoUserRepository{coll: s.db.Collection(usersCollection)}
}

func (s *MongoStore) Requests() repository.RequestRepository {
	return &mongoRequestRepository{
		coll:   s.db.Collection(requestsCollection),
		collab: s.db.Collection(collaborationsCollection),
	}
}

func (s *MongoStore) Collaborations() repository.CollaborationRepository {
	return &mongoCollaborationRepository{coll: s.db.Collection(collaborationsCollection)}
}

func (s *MongoStore) Messages() repository.MessageRepository {
	return &mongoMessageRepository{coll: s.db.Collection(messagesCollection)}
}

// EnsureIndexes creates the lookup indexes plus a partial unique index that
// lets at most one accepted collaboration exist per chat.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	uniqueID := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	for _, name := range []string{usersCollection, requestsCollection, collaborationsCollection, messagesCollection} {
		if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, uniqueID); err != nil {
			return errors.Internal("Failed to create id index on "+name, err)
		}
	}

	if _, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Internal("Failed to create users email index", err)
	}

	if _, err := s.db.Collection(requestsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "investorId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "entrepreneurId", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return errors.Internal("Failed to create requests indexes", err)
	}

	if _, err := s.db.Collection(collaborationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "requesterId", Value: 1}}},
		{Keys: bson.D{{Key: "recipientId", Value: 1}}},
		{
			Keys: bson.D{{Key: "chatId", Value: 1}},
			Options: options.Index().
				SetName("chatId_accepted_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": entity.StatusAccepted}),
		},
	}); err != nil {
		return errors.Internal("Failed to create collaborations indexes", err)
	}

	if _, err := s.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}},
	}); err != nil {
		return errors.Internal("Failed to create messages index", err)
	}

	return nil
}

// statusIs matches any of statuses case-insensitively so legacy "Pending"
// documents still take part in filters and transitions.
func statusIs(statuses ...string) bson.M {
	quoted := make([]string, len(statuses))
	for i, status := range statuses {
		quoted[i] = regexp.QuoteMeta(status)
	}
	return bson.M{"$regex": "^(" + strings.Join(quoted, "|") + ")$", "$options": "i"}
}

func partyFilter(a, b, userID string) bson.A {
	return bson.A{bson.M{a: userID}, bson.M{b: userID}}
}

func isNoDocuments(err error) bool {
	return stderrors.Is(err, mongo.ErrNoDocuments)
}

// users

type mongoUserRepository struct {
	coll *mongo.Collection
}

func (r *mongoUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("User id or email already exists")
		}
		return errors.Internal("Failed to create user", err)
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var user entity.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if isNoDocuments(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) List(ctx context.Context, role string) ([]*entity.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, errors.Internal("Failed to list users", err)
	}
	defer cursor.Close(ctx)

	users := []*entity.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Internal("Failed to decode users", err)
	}
	return users, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *entity.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Email already registered")
		}
		return errors.Internal("Failed to update user", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound("User", nil)
	}
	return nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return errors.Internal("Failed to delete user", err)
	}
	if res.DeletedCount == 0 {
		return errors.NotFound("User", nil)
	}
	return nil
}

// requests

type mongoRequestRepository struct {
	coll   *mongo.Collection
	collab *mongo.Collection
}

func (r *mongoRequestRepository) Create(ctx context.Context, request *entity.Request) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, request); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Request id already exists")
		}
		return errors.Internal("Failed to create request", err)
	}
	return nil
}

func (r *mongoRequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	var request entity.Request
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&request); err != nil {
		if isNoDocuments(err) {
			return nil, errors.NotFound("Request", err)
		}
		return nil, errors.Internal("Failed to get request", err)
	}
	return &request, nil
}

func (r *mongoRequestRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Request, error) {
	filter := bson.M{
		"$or":    partyFilter("investorId", "entrepreneurId", userID),
		"status": statusIs(status),
	}
	return r.find(ctx, filter)
}

func (r *mongoRequestRepository) ListAll(ctx context.Context) ([]*entity.Request, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoRequestRepository) find(ctx context.Context, filter bson.M) ([]*entity.Request, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Internal("Failed to query requests", err)
	}
	defer cursor.Close(ctx)

	requests := []*entity.Request{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, errors.Internal("Failed to decode requests", err)
	}
	return requests, nil
}

// Convert claims the request with a conditional delete, so only one caller
// can ever turn it into a collaboration. If the insert then fails the
// request is put back.
func (r *mongoRequestRepository) Convert(ctx context.Context, requestID string, collab *entity.Collaboration) (*entity.Request, error) {
	request, err := r.DeletePending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	if _, err := r.collab.InsertOne(ctx, collab); err != nil {
		if _, restoreErr := r.coll.InsertOne(ctx, request); restoreErr != nil {
			logger.Error("Convert: failed to restore request %s after insert failure: %v", requestID, restoreErr)
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Conflict("Chat already has an accepted collaboration")
		}
		return nil, errors.Internal("Failed to create collaboration", err)
	}
	return request, nil
}

func (r *mongoRequestRepository) DeletePending(ctx context.Context, id string) (*entity.Request, error) {
	var request entity.Request
	err := r.coll.FindOneAndDelete(ctx, bson.M{"id": id, "status": statusIs(entity.StatusPending)}).Decode(&request)
	if err == nil {
		return &request, nil
	}
	if !isNoDocuments(err) {
		return nil, errors.Internal("Failed to delete request", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.InvalidState("Request already processed")
}

// collaborations

type mongoCollaborationRepository struct {
	coll *mongo.Collection
}

func (r *mongoCollaborationRepository) Create(ctx context.Context, collab *entity.Collaboration) error {
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, collab); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Collaboration already exists")
		}
		return errors.Internal("Failed to create collaboration", err)
	}
	return nil
}

func (r *mongoCollaborationRepository) GetByID(ctx context.Context, id string) (*entity.Collaboration, error) {
	return r.findOne(ctx, bson.M{"id": id}, "Collaboration")
}

func (r *mongoCollaborationRepository) findOne(ctx context.Context, filter bson.M, resource string) (*entity.Collaboration, error) {
	var collab entity.Collaboration
	if err := r.coll.FindOne(ctx, filter).Decode(&collab); err != nil {
		if isNoDocuments(err) {
			return nil, errors.NotFound(resource, err)
		}
		return nil, errors.Internal("Failed to get collaboration", err)
	}
	return &collab, nil
}

func (r *mongoCollaborationRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Collaboration, error) {
	return r.find(ctx, bson.M{
		"$or":    partyFilter("requesterId", "recipientId", userID),
		"status": statusIs(status),
	})
}

func (r *mongoCollaborationRepository) ListAll(ctx context.Context) ([]*entity.Collaboration, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoCollaborationRepository) find(ctx context.Context, filter bson.M) ([]*entity.Collaboration, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Internal("Failed to query collaborations", err)
	}
	defer cursor.Close(ctx)

	collabs := []*entity.Collaboration{}
	if err := cursor.All(ctx, &collabs); err != nil {
		return nil, errors.Internal("Failed to decode collaborations", err)
	}
	return collabs, nil
}

func (r *mongoCollaborationRepository) FindAccepted(ctx context.Context, chatID, userID string) (*entity.Collaboration, error) {
	return r.findOne(ctx, bson.M{
		"chatId": chatID,
		"status": statusIs(entity.StatusAccepted),
		"$or":    partyFilter("requesterId", "recipientId", userID),
	}, "Accepted collaboration")
}

func (r *mongoCollaborationRepository) HasAccepted(ctx context.Context, chatID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"chatId": chatID, "status": statusIs(entity.StatusAccepted)})
	if err != nil {
		return false, errors.Internal("Failed to count collaborations", err)
	}
	return n > 0, nil
}

// Accept flips status with a conditional update; the partial unique index
// rejects a second accepted record on the same chat. The duplicate cleanup
// afterwards is idempotent.
func (r *mongoCollaborationRepository) Accept(ctx context.Context, id string, at time.Time) (*entity.Collaboration, int, error) {
	collab, err := r.SetStatus(ctx, id, entity.StatusPending, entity.StatusAccepted, at)
	if err != nil {
		return nil, 0, err
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{
		"chatId": collab.ChatID,
		"status": statusIs(entity.StatusPending, entity.StatusRejected),
		"id": bson.M{"$ne": collab.ID},
	})
	if err != nil {
		return nil, 0, errors.Internal("Failed to remove duplicate collaborations", err)
	}
	return collab, int(res.DeletedCount), nil
}

func (r *mongoCollaborationRepository) SetStatus(ctx context.Context, id, from, to string, at time.Time) (*entity.Collaboration, error) {
	if to == entity.StatusAccepted {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		var other entity.Collaboration
		err = r.coll.FindOne(ctx, bson.M{
			"chatId": current.ChatID,
			"status": statusIs(entity.StatusAccepted),
			"id":     bson.M{"$ne": id},
		}).Decode(&other)
		if err == nil {
			return nil, errors.Conflict("Chat already has an accepted collaboration")
		}
		if !isNoDocuments(err) {
			return nil, errors.Internal("Failed to check accepted collaborations", err)
		}
	}

	var collab entity.Collaboration
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"id": id, "status": statusIs(from)},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&collab)
	if err == nil {
		return &collab, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, errors.Conflict("Chat already has an accepted collaboration")
	}
	if !isNoDocuments(err) {
		return nil, errors.Internal("Failed to update collaboration", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.InvalidState("Collaboration already processed")
}

func (r *mongoCollaborationRepository) DeletePending(ctx context.Context, id string) (*entity.Collaboration, error) {
	var collab entity.Collaboration
	err := r.coll.FindOneAndDelete(ctx, bson.M{"id": id, "status": statusIs(entity.StatusPending)}).Decode(&collab)
	if err == nil {
		return &collab, nil
	}
	if !isNoDocuments(err) {
		return nil, errors.Internal("Failed to delete collaboration", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.InvalidState("Collaboration already processed")
}

// messages

type mongoMessageRepository struct {
	coll *mongo.Collection
}

func (r *mongoMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, message); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Message id already exists")
		}
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var message entity.Message
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&message); err != nil {
		if isNoDocuments(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return &message, nil
}

func (r *mongoMessageRepository) ListByChat(ctx context.Context, chatID string) ([]*entity.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	defer cursor.Close(ctx)

	messages := []*entity.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Internal("Failed to decode messages", err)
	}
	return messages, nil
}

func (r *mongoMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": message.ID}, message)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	if res.DeletedCount == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *mongoMessageRepository) MarkRead(ctx context.Context, id string) (*entity.Message, error) {
	var message entity.Message
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&message)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to mark message as read", err)
	}
	return &message, nil
}
