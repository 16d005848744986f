package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusPending, NormalizeStatus("Pending"))
	assert.Equal(t, StatusAccepted, NormalizeStatus(" ACCEPTED "))
	assert.True(t, IsValidStatus("Rejected"))
	assert.False(t, IsValidStatus("archived"))
}

func TestIsParty(t *testing.T) {
	c := &Collaboration{RequesterID: "a", RecipientID: "b"}
	assert.True(t, c.IsParty("a"))
	assert.True(t, c.IsParty("b"))
	assert.False(t, c.IsParty("c"))
	assert.False(t, c.IsParty(""))

	r := &Request{InvestorID: "a", EntrepreneurID: "b"}
	assert.True(t, r.IsParty("b"))
	assert.False(t, r.IsParty("d"))
}

func TestUserSummary(t *testing.T) {
	var missing *User
	assert.Equal(t, UserSummary{}, missing.Summary())

	u := &User{ID: "u1", Name: "Ada", Role: RoleInvestor, Avatar: "a.png", Email: "ada@example.com"}
	assert.Equal(t, UserSummary{ID: "u1", Name: "Ada", Role: RoleInvestor, Avatar: "a.png"}, u.Summary())
}
