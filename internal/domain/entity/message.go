package entity

import "time"

type Message struct {
	ID         string    `json:"id" bson:"id" firestore:"id"`
	ChatID     string    `json:"chatId" bson:"chatId" firestore:"chatId"`
	SenderID   string    `json:"senderId" bson:"senderId" firestore:"senderId"`
	SenderName string    `json:"senderName" bson:"senderName" firestore:"senderName"`
	Text       string    `json:"text" bson:"text" firestore:"text"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
	Read       bool      `json:"read" bson:"read" firestore:"read"`
}
