package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain/entity"
	"nexus/pkg/errors"
)

func openChat(t *testing.T, f *fixture, requester, recipient string) string {
	t.Helper()
	ctx := context.Background()

	c, err := f.collabs.CreateCollaboration(ctx, CreateCollaborationInput{RequesterID: requester, RecipientID: recipient})
	require.NoError(t, err)
	_, err = f.collabs.AcceptCollaboration(ctx, entity.CallerIdentity{UserID: recipient}, c.ID)
	require.NoError(t, err)
	return c.ChatID
}

func TestPostMessageWithoutCollaborationIsForbidden(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()

	pending, err := f.collabs.CreateCollaboration(ctx, CreateCollaborationInput{RequesterID: "a", RecipientID: "b"})
	require.NoError(t, err)

	for _, chatID := range []string{"nowhere", pending.ChatID} {
		_, err := f.chat.PostMessage(ctx, entity.CallerIdentity{}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "hello"})
		assert.True(t, errors.Is(err, errors.CodeForbidden))

		msgs, err := f.store.Messages().ListByChat(ctx, chatID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	}
}

func TestPostMessageValidation(t *testing.T) {
	f := newFixture(EditPolicySender)
	chatID := openChat(t, f, "a", "b")

	_, err := f.chat.PostMessage(context.Background(), entity.CallerIdentity{}, PostMessageInput{ChatID: chatID, SenderID: "a", Text: "no name"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = f.chat.PostMessage(context.Background(), entity.CallerIdentity{UserID: "b"}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "spoofed"})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestPostAndListMessagesRoundTrip(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()
	chatID := openChat(t, f, "a", "b")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := f.chat.PostMessage(ctx, entity.CallerIdentity{UserID: "b"}, PostMessageInput{ChatID: chatID, SenderID: "b", SenderName: "Bo", Text: "second", Timestamp: base.Add(time.Minute)})
	require.NoError(t, err)
	posted, err := f.chat.PostMessage(ctx, entity.CallerIdentity{UserID: "a"}, PostMessageInput{ID: "client-id", ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "first", Timestamp: base})
	require.NoError(t, err)
	assert.Equal(t, "client-id", posted.ID)
	assert.False(t, posted.Read)

	msgs, err := f.chat.ListMessages(ctx, entity.CallerIdentity{UserID: "a"}, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.False(t, msgs[0].Read)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}

	_, err = f.chat.ListMessages(ctx, entity.CallerIdentity{UserID: "d"}, chatID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestSenderPolicyAuthorizesOnStoredSender(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()
	chatID := openChat(t, f, "a", "b")

	msg, err := f.chat.PostMessage(ctx, entity.CallerIdentity{}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "draft"})
	require.NoError(t, err)

	updated, err := f.chat.UpdateMessage(ctx, entity.CallerIdentity{UserID: "b"}, msg.ID, UpdateMessageInput{Text: "edited by b", Read: true})
	require.NoError(t, err)
	assert.Equal(t, "edited by b", updated.Text)
	assert.True(t, updated.Read)

	unread, err := f.chat.UpdateMessage(ctx, entity.CallerIdentity{}, msg.ID, UpdateMessageInput{})
	require.NoError(t, err)
	assert.Equal(t, "edited by b", unread.Text)
	assert.True(t, unread.Read)

	got, err := f.chat.GetMessage(ctx, entity.CallerIdentity{}, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)

	require.NoError(t, f.chat.DeleteMessage(ctx, entity.CallerIdentity{}, msg.ID))
	_, err = f.chat.GetMessage(ctx, entity.CallerIdentity{}, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestSenderPolicyBlocksOnceSenderLosesStanding(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()
	chatID := openChat(t, f, "a", "b")

	msg, err := f.chat.PostMessage(ctx, entity.CallerIdentity{}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "hi"})
	require.NoError(t, err)

	collab, err := f.store.Collaborations().FindAccepted(ctx, chatID, "a")
	require.NoError(t, err)
	_, err = f.collabs.UpdateCollaborationStatus(ctx, entity.CallerIdentity{UserID: "a"}, collab.ID, entity.StatusRejected)
	require.NoError(t, err)

	err = f.chat.DeleteMessage(ctx, entity.CallerIdentity{UserID: "a"}, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestCallerPolicyRequiresAuthor(t *testing.T) {
	f := newFixture(EditPolicyCaller)
	ctx := context.Background()
	chatID := openChat(t, f, "a", "b")

	msg, err := f.chat.PostMessage(ctx, entity.CallerIdentity{UserID: "a"}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "mine"})
	require.NoError(t, err)

	_, err = f.chat.UpdateMessage(ctx, entity.CallerIdentity{UserID: "b"}, msg.ID, UpdateMessageInput{Text: "hijack"})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = f.chat.GetMessage(ctx, entity.CallerIdentity{UserID: "b"}, msg.ID)
	assert.NoError(t, err)

	_, err = f.chat.GetMessage(ctx, entity.CallerIdentity{UserID: "d"}, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.chat.UpdateMessage(ctx, entity.CallerIdentity{}, msg.ID, UpdateMessageInput{Text: "anon"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	updated, err := f.chat.UpdateMessage(ctx, entity.CallerIdentity{UserID: "a"}, msg.ID, UpdateMessageInput{Text: "mine, edited"})
	require.NoError(t, err)
	assert.Equal(t, "mine, edited", updated.Text)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()
	chatID := openChat(t, f, "a", "b")

	msg, err := f.chat.PostMessage(ctx, entity.CallerIdentity{}, PostMessageInput{ChatID: chatID, SenderID: "a", SenderName: "Ann", Text: "ping"})
	require.NoError(t, err)

	read, err := f.chat.MarkRead(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = f.chat.MarkRead(ctx, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestRequestToChatScenario(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()
	investor := entity.CallerIdentity{UserID: "A"}
	entrepreneur := entity.CallerIdentity{UserID: "B"}

	req, err := f.requests.CreateRequest(ctx, CreateRequestInput{InvestorID: "A", EntrepreneurID: "B", InvestorName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, req.Status)

	result, err := f.requests.AcceptRequest(ctx, entrepreneur, req.ID)
	require.NoError(t, err)
	chatID := result.ChatID

	updated := f.notifier.usersFor(EventRequestUpdated)
	assert.Contains(t, updated, "A")
	assert.Contains(t, updated, "B")

	all, err := f.collabs.ListAllCollaborations(ctx)
	require.NoError(t, err)
	accepted := 0
	for _, c := range all {
		if c.ChatID == chatID && c.Status == entity.StatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)

	_, err = f.chat.PostMessage(ctx, investor, PostMessageInput{ChatID: chatID, SenderID: "A", SenderName: "Alice", Text: "Hello B"})
	require.NoError(t, err)
	_, err = f.chat.PostMessage(ctx, entrepreneur, PostMessageInput{ChatID: chatID, SenderID: "B", SenderName: "Bob", Text: "Hi A"})
	require.NoError(t, err)

	for _, who := range []entity.CallerIdentity{investor, entrepreneur} {
		msgs, err := f.chat.ListMessages(ctx, who, chatID)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	}

	_, err = f.chat.ListMessages(ctx, entity.CallerIdentity{UserID: "D"}, chatID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}
