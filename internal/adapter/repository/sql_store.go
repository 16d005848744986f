package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

// SQLStore keeps each entity kind in its own table. Transitions run inside
// a transaction that locks the row being resolved.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Users() repository.UserRepository {
	return &sqlUserRepository{db: s.db}
}

func (s *SQLStore) Requests() repository.RequestRepository {
	return &sqlRequestRepository{db: s.db}
}

func (s *SQLStore) Collaborations() repository.CollaborationRepository {
	return &sqlCollaborationRepository{db: s.db}
}

func (s *SQLStore) Messages() repository.MessageRepository {
	return &sqlMessageRepository{db: s.db}
}

// Migrate creates the tables and the partial unique index that allows one
// accepted collaboration per chat.
func (s *SQLStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&userRow{}, &requestRow{}, &collaborationRow{}, &messageRow{}); err != nil {
		return errors.Internal("Failed to migrate schema", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_collaborations_chat_accepted
		ON collaborations (chat_id) WHERE lower(status) = 'accepted'`).Error
	if err != nil {
		return errors.Internal("Failed to create accepted chat index", err)
	}
	return nil
}

type userRow struct {
	ID       string `gorm:"primaryKey;size:64"`
	Email    string `gorm:"uniqueIndex;size:320;not null"`
	Password string `gorm:"not null"`
	Role     string `gorm:"index;size:32"`
	Name     string
	// Profile holds the remaining user fields as JSON.
	Profile datatypes.JSON
}

func (userRow) TableName() string { return usersCollection }

func newUserRow(u *entity.User) (*userRow, error) {
	profile, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Internal("Failed to encode user profile", err)
	}
	return &userRow{
		ID:       u.ID,
		Email:    u.Email,
		Password: u.Password,
		Role:     u.Role,
		Name:     u.Name,
		Profile:  datatypes.JSON(profile),
	}, nil
}

func (r *userRow) toEntity() (*entity.User, error) {
	var u entity.User
	if len(r.Profile) > 0 {
		if err := json.Unmarshal(r.Profile, &u); err != nil {
			return nil, errors.Internal("Failed to decode user profile", err)
		}
	}
	u.ID = r.ID
	u.Email = r.Email
	u.Password = r.Password
	u.Role = r.Role
	u.Name = r.Name
	return &u, nil
}

type requestRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	InvestorID     string `gorm:"index;size:64"`
	EntrepreneurID string `gorm:"index;size:64"`
	InvestorName   string
	ProfileSnippet string
	Status         string    `gorm:"index;size:16"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
}

func (requestRow) TableName() string { return requestsCollection }

func (r *requestRow) toEntity() *entity.Request {
	return &entity.Request{
		ID:             r.ID,
		InvestorID:     r.InvestorID,
		EntrepreneurID: r.EntrepreneurID,
		InvestorName:   r.InvestorName,
		ProfileSnippet: r.ProfileSnippet,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
	}
}

type collaborationRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	RequesterID string    `gorm:"index;size:64"`
	RecipientID string    `gorm:"index;size:64"`
	Status      string    `gorm:"size:16"`
	ChatID      string    `gorm:"index;size:64"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (collaborationRow) TableName() string { return collaborationsCollection }

func newCollaborationRow(c *entity.Collaboration) *collaborationRow {
	return &collaborationRow{
		ID:          c.ID,
		RequesterID: c.RequesterID,
		RecipientID: c.RecipientID,
		Status:      c.Status,
		ChatID:      c.ChatID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *collaborationRow) toEntity() *entity.Collaboration {
	return &entity.Collaboration{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		RecipientID: r.RecipientID,
		Status:      r.Status,
		ChatID:      r.ChatID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type messageRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	ChatID     string `gorm:"index:idx_messages_chat_time,priority:1;size:64"`
	SenderID   string `gorm:"size:64"`
	SenderName string
	Text       string
	Timestamp  time.Time `gorm:"index:idx_messages_chat_time,priority:2"`
	Read       bool
}

func (messageRow) TableName() string { return messagesCollection }

func newMessageRow(m *entity.Message) *messageRow {
	return &messageRow{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}

func (r *messageRow) toEntity() *entity.Message {
	return &entity.Message{
		ID:         r.ID,
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Text:       r.Text,
		Timestamp:  r.Timestamp.UTC(),
		Read:       r.Read,
	}
}

func isRecordNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	return stderrors.Is(err, gorm.ErrDuplicatedKey)
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// users

type sqlUserRepository struct {
	db *gorm.DB
}

func (r *sqlUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	row, err := newUserRow(user)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Conflict("User id or email already exists")
		}
		return errors.Internal("Failed to create user", err)
	}
	return nil
}

func (r *sqlUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *sqlUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.take(ctx, "email = ?", email)
}

func (r *sqlUserRepository) take(ctx context.Context, query string, arg string) (*entity.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&row).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return row.toEntity()
}

func (r *sqlUserRepository) List(ctx context.Context, role string) ([]*entity.User, error) {
	q := r.db.WithContext(ctx).Order("id")
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var rows []userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Internal("Failed to list users", err)
	}

	users := make([]*entity.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *sqlUserRepository) Update(ctx context.Context, user *entity.User) error {
	row, err := newUserRow(user)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":    row.Email,
		"password": row.Password,
		"role":     row.Role,
		"name":     row.Name,
		"profile":  row.Profile,
	})
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return errors.Conflict("Email already registered")
		}
		return errors.Internal("Failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("User", nil)
	}
	return nil
}

func (r *sqlUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{})
	if res.Error != nil {
		return errors.Internal("Failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("User", nil)
	}
	return nil
}

// requests

type sqlRequestRepository struct {
	db *gorm.DB
}

func (r *sqlRequestRepository) Create(ctx context.Context, request *entity.Request) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	row := &requestRow{
		ID:             request.ID,
		InvestorID:     request.InvestorID,
		EntrepreneurID: request.EntrepreneurID,
		InvestorName:   request.InvestorName,
		ProfileSnippet: request.ProfileSnippet,
		Status:         request.Status,
		CreatedAt:      request.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Conflict("Request id already exists")
		}
		return errors.Internal("Failed to create request", err)
	}
	return nil
}

func (r *sqlRequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	return takeRequest(r.db.WithContext(ctx), id)
}

func takeRequest(tx *gorm.DB, id string) (*entity.Request, error) {
	var row requestRow
	if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, errors.NotFound("Request", err)
		}
		return nil, errors.Internal("Failed to get request", err)
	}
	return row.toEntity(), nil
}

func (r *sqlRequestRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Request, error) {
	return r.find(r.db.WithContext(ctx).
		Where("(investor_id = ? OR entrepreneur_id = ?) AND lower(status) = ?", userID, userID, entity.NormalizeStatus(status)))
}

func (r *sqlRequestRepository) ListAll(ctx context.Context) ([]*entity.Request, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *sqlRequestRepository) find(q *gorm.DB) ([]*entity.Request, error) {
	var rows []requestRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, errors.Internal("Failed to query requests", err)
	}
	requests := make([]*entity.Request, 0, len(rows))
	for i := range rows {
		requests = append(requests, rows[i].toEntity())
	}
	return requests, nil
}

// takePending locks the request row and removes it if it is still pending.
func takePending(tx *gorm.DB, id string) (*entity.Request, error) {
	request, err := takeRequest(forUpdate(tx), id)
	if err != nil {
		return nil, err
	}
	if entity.NormalizeStatus(request.Status) != entity.StatusPending {
		return nil, errors.InvalidState("Request already processed")
	}
	if err := tx.Where("id = ?", id).Delete(&requestRow{}).Error; err != nil {
		return nil, errors.Internal("Failed to delete request", err)
	}
	return request, nil
}

func (r *sqlRequestRepository) Convert(ctx context.Context, requestID string, collab *entity.Collaboration) (*entity.Request, error) {
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}

	var request *entity.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if request, err = takePending(tx, requestID); err != nil {
			return err
		}
		if err := tx.Create(newCollaborationRow(collab)).Error; err != nil {
			if isDuplicateKey(err) {
				return errors.Conflict("Chat already has an accepted collaboration")
			}
			return errors.Internal("Failed to create collaboration", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("Failed to convert request", err)
	}
	return request, nil
}

func (r *sqlRequestRepository) DeletePending(ctx context.Context, id string) (*entity.Request, error) {
	var request *entity.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = takePending(tx, id)
		return err
	})
	if err != nil {
		return nil, wrapTxError("Failed to delete request", err)
	}
	return request, nil
}

// collaborations

type sqlCollaborationRepository struct {
	db *gorm.DB
}

func (r *sqlCollaborationRepository) Create(ctx context.Context, collab *entity.Collaboration) error {
	if collab.ID == "" {
		collab.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(newCollaborationRow(collab)).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Conflict("Collaboration already exists")
		}
		return errors.Internal("Failed to create collaboration", err)
	}
	return nil
}

func (r *sqlCollaborationRepository) GetByID(ctx context.Context, id string) (*entity.Collaboration, error) {
	return takeCollaboration(r.db.WithContext(ctx), id)
}

func takeCollaboration(tx *gorm.DB, id string) (*entity.Collaboration, error) {
	var row collaborationRow
	if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, errors.NotFound("Collaboration", err)
		}
		return nil, errors.Internal("Failed to get collaboration", err)
	}
	return row.toEntity(), nil
}

func (r *sqlCollaborationRepository) ListByParty(ctx context.Context, userID, status string) ([]*entity.Collaboration, error) {
	return r.find(r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND lower(status) = ?", userID, userID, entity.NormalizeStatus(status)))
}

func (r *sqlCollaborationRepository) ListAll(ctx context.Context) ([]*entity.Collaboration, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *sqlCollaborationRepository) find(q *gorm.DB) ([]*entity.Collaboration, error) {
	var rows []collaborationRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, errors.Internal("Failed to query collaborations", err)
	}
	collabs := make([]*entity.Collaboration, 0, len(rows))
	for i := range rows {
		collabs = append(collabs, rows[i].toEntity())
	}
	return collabs, nil
}

func (r *sqlCollaborationRepository) FindAccepted(ctx context.Context, chatID, userID string) (*entity.Collaboration, error) {
	var row collaborationRow
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND lower(status) = ? AND (requester_id = ? OR recipient_id = ?)",
			chatID, entity.StatusAccepted, userID, userID).
		Take(&row).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, errors.NotFound("Accepted collaboration", err)
		}
		return nil, errors.Internal("Failed to get collaboration", err)
	}
	return row.toEntity(), nil
}

func (r *sqlCollaborationRepository) HasAccepted(ctx context.Context, chatID string) (bool, error) {
	return acceptedExists(r.db.WithContext(ctx), chatID, "")
}

func acceptedExists(tx *gorm.DB, chatID, exceptID string) (bool, error) {
	var n int64
	q := tx.Model(&collaborationRow{}).Where("chat_id = ? AND lower(status) = ?", chatID, entity.StatusAccepted)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, errors.Internal("Failed to count collaborations", err)
	}
	return n > 0, nil
}

func (r *sqlCollaborationRepository) Accept(ctx context.Context, id string, at time.Time) (*entity.Collaboration, int, error) {
	var (
		accepted *entity.Collaboration
		removed  int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		accepted, err = setStatus(tx, id, entity.StatusPending, entity.StatusAccepted, at)
		if err != nil {
			return err
		}

		res := tx.Where("chat_id = ? AND id <> ? AND lower(status) IN ?",
			accepted.ChatID, id, []string{entity.StatusPending, entity.StatusRejected}).
			Delete(&collaborationRow{})
		if res.Error != nil {
			return errors.Internal("Failed to remove duplicate collaborations", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, 0, wrapTxError("Failed to accept collaboration", err)
	}
	return accepted, int(removed), nil
}

func (r *sqlCollaborationRepository) SetStatus(ctx context.Context, id, from, to string, at time.Time) (*entity.Collaboration, error) {
	var updated *entity.Collaboration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = setStatus(tx, id, from, to, at)
		return err
	})
	if err != nil {
		return nil, wrapTxError("Failed to update collaboration", err)
	}
	return updated, nil
}

// setStatus must run inside a transaction.
func setStatus(tx *gorm.DB, id, from, to string, at time.Time) (*entity.Collaboration, error) {
	collab, err := takeCollaboration(forUpdate(tx), id)
	if err != nil {
		return nil, err
	}
	if entity.NormalizeStatus(collab.Status) != from {
		if from == entity.StatusPending {
			return nil, errors.InvalidState("Collaboration already processed")
		}
		return nil, errors.InvalidState("Collaboration status changed concurrently")
	}

	if to == entity.StatusAccepted {
		taken, err := acceptedExists(tx, collab.ChatID, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errors.Conflict("Chat already has an accepted collaboration")
		}
	}

	err = tx.Model(&collaborationRow{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": to, "updated_at": at}).Error
	if err != nil {
		if isDuplicateKey(err) {
			return nil, errors.Conflict("Chat already has an accepted collaboration")
		}
		return nil, errors.Internal("Failed to update collaboration", err)
	}

	collab.Status = to
	collab.UpdatedAt = at
	return collab, nil
}

func (r *sqlCollaborationRepository) DeletePending(ctx context.Context, id string) (*entity.Collaboration, error) {
	var collab *entity.Collaboration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if collab, err = takeCollaboration(forUpdate(tx), id); err != nil {
			return err
		}
		if entity.NormalizeStatus(collab.Status) != entity.StatusPending {
			return errors.InvalidState("Collaboration already processed")
		}
		if err := tx.Where("id = ?", id).Delete(&collaborationRow{}).Error; err != nil {
			return errors.Internal("Failed to delete collaboration", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("Failed to delete collaboration", err)
	}
	return collab, nil
}

// messages

type sqlMessageRepository struct {
	db *gorm.DB
}

func (r *sqlMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(newMessageRow(message)).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Conflict("Message id already exists")
		}
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *sqlMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var row messageRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return row.toEntity(), nil
}

func (r *sqlMessageRepository) ListByChat(ctx context.Context, chatID string) ([]*entity.Message, error) {
	var rows []messageRow
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order(`"timestamp", id`).Find(&rows).Error; err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toEntity())
	}
	return messages, nil
}

func (r *sqlMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	res := r.db.WithContext(ctx).Model(&messageRow{}).Where("id = ?", message.ID).Updates(map[string]interface{}{
		"chat_id":     message.ChatID,
		"sender_id":   message.SenderID,
		"sender_name": message.SenderName,
		"text":        message.Text,
		"timestamp":   message.Timestamp,
		"read":        message.Read,
	})
	if res.Error != nil {
		return errors.Internal("Failed to update message", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *sqlMessageRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&messageRow{})
	if res.Error != nil {
		return errors.Internal("Failed to delete message", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *sqlMessageRepository) MarkRead(ctx context.Context, id string) (*entity.Message, error) {
	var message *entity.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row messageRow
		if err := forUpdate(tx).Where("id = ?", id).Take(&row).Error; err != nil {
			if isRecordNotFound(err) {
				return errors.NotFound("Message", err)
			}
			return errors.Internal("Failed to get message", err)
		}
		if err := tx.Model(&messageRow{}).Where("id = ?", id).Update("read", true).Error; err != nil {
			return errors.Internal("Failed to mark message as read", err)
		}
		row.Read = true
		message = row.toEntity()
		return nil
	})
	if err != nil {
		return nil, wrapTxError("Failed to mark message as read", err)
	}
	return message, nil
}
