package entity

import "strings"

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// NormalizeStatus maps legacy capitalised values ("Pending") onto the
// canonical lowercase form.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func IsValidStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}
