package usecase

import "nexus/pkg/errors"

const (
	EventRequestUpdated       = "requestUpdated"
	EventCollaborationUpdated = "collaborationUpdated"
)

// Notifier pushes lifecycle changes to connected clients. The realtime broker
// implements it; clients filter by the userId in the payload.
type Notifier interface {
	Notify(event string, payload interface{})
}

// UserUpdate is the payload of requestUpdated and collaborationUpdated.
type UserUpdate struct {
	UserID string `json:"userId"`
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, interface{}) {}

func notifyParties(n Notifier, event string, userIDs ...string) {
	for _, id := range userIDs {
		n.Notify(event, UserUpdate{UserID: id})
	}
}

func orNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// outcome labels a transition for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
