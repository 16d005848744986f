package entity

import "time"

// Collaboration gates access to the chat channel identified by ChatID.
// Several pending or rejected records may share a ChatID; at most one may be
// accepted.
type Collaboration struct {
	ID          string    `json:"id" bson:"id" firestore:"id"`
	RequesterID string    `json:"requesterId" bson:"requesterId" firestore:"requesterId"`
	RecipientID string    `json:"recipientId" bson:"recipientId" firestore:"recipientId"`
	Status      string    `json:"status" bson:"status" firestore:"status"`
	ChatID      string    `json:"chatId" bson:"chatId" firestore:"chatId"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

func (c *Collaboration) IsParty(userID string) bool {
	return userID != "" && (c.RequesterID == userID || c.RecipientID == userID)
}
