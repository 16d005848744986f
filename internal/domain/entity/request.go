package entity

import "time"

// Request is an investor's interest in an entrepreneur. It is deleted once
// resolved, so a stored request is always pending in practice.
type Request struct {
	ID             string    `json:"id" bson:"id" firestore:"id"`
	InvestorID     string    `json:"investorId" bson:"investorId" firestore:"investorId"`
	EntrepreneurID string    `json:"entrepreneurId" bson:"entrepreneurId" firestore:"entrepreneurId"`
	InvestorName   string    `json:"investorName" bson:"investorName" firestore:"investorName"`
	ProfileSnippet string    `json:"profileSnippet,omitempty" bson:"profileSnippet,omitempty" firestore:"profileSnippet,omitempty"`
	Status         string    `json:"status" bson:"status" firestore:"status"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
}

func (r *Request) IsParty(userID string) bool {
	return userID != "" && (r.InvestorID == userID || r.EntrepreneurID == userID)
}
