package usecase

import (
	"sync"

	"nexus/internal/adapter/repository"
	"nexus/internal/domain/service"
)

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *fakeNotifier) Notify(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Event: event, Payload: payload})
}

func (n *fakeNotifier) usersFor(event string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, e := range n.events {
		if e.Event == event {
			ids = append(ids, e.Payload.(UserUpdate).UserID)
		}
	}
	return ids
}

type fixture struct {
	store    *repository.MemoryStore
	notifier *fakeNotifier
	requests *RequestUseCase
	collabs  *CollaborationUseCase
	chat     *ChatUseCase
	users    *UserUseCase
}

func newFixture(editPolicy string) *fixture {
	store := repository.NewMemoryStore()
	notifier := &fakeNotifier{}
	guard := service.NewChatAccessGuard(store.Collaborations())

	return &fixture{
		store:    store,
		notifier: notifier,
		requests: NewRequestUseCase(store.Requests(), store.Users(), notifier, nil),
		collabs:  NewCollaborationUseCase(store.Collaborations(), store.Users(), notifier, nil),
		chat:     NewChatUseCase(store.Messages(), guard, editPolicy),
		users:    NewUserUseCase(store.Users()),
	}
}
