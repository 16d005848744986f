package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

type recordStore interface {
	Users() repository.UserRepository
	Requests() repository.RequestRepository
	Collaborations() repository.CollaborationRepository
	Messages() repository.MessageRepository
}

// runStoreContract checks the behaviour every driver must share. Ids are
// prefixed so runs against a shared database do not collide.
func runStoreContract(t *testing.T, store recordStore, prefix string) {
	ctx := context.Background()
	id := func(s string) string { return prefix + s }

	t.Run("ConvertOnlyOnce", func(t *testing.T) {
		requests := store.Requests()
		require.NoError(t, requests.Create(ctx, &entity.Request{
			ID: id("req"), InvestorID: id("inv"), EntrepreneurID: id("ent"),
			Status: entity.StatusPending, CreatedAt: time.Now(),
		}))

		var wg sync.WaitGroup
		results := make([]error, 4)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = requests.Convert(ctx, id("req"), &entity.Collaboration{
					RequesterID: id("inv"), RecipientID: id("ent"),
					ChatID: id("chat-convert"), Status: entity.StatusAccepted, CreatedAt: time.Now(),
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, errors.CodeInvalidState) || errors.Is(err, errors.CodeNotFound), err.Error())
		}
		assert.Equal(t, 1, succeeded)

		found, err := store.Collaborations().FindAccepted(ctx, id("chat-convert"), id("ent"))
		require.NoError(t, err)
		assert.Equal(t, id("inv"), found.RequesterID)
	})

	t.Run("AcceptClearsDuplicates", func(t *testing.T) {
		collabs := store.Collaborations()
		chat := id("chat-accept")
		for _, c := range []*entity.Collaboration{
			{ID: id("a1"), RequesterID: id("u1"), RecipientID: id("u2"), ChatID: chat, Status: entity.StatusPending},
			{ID: id("a2"), RequesterID: id("u1"), RecipientID: id("u2"), ChatID: chat, Status: entity.StatusPending},
			{ID: id("a3"), RequesterID: id("u2"), RecipientID: id("u1"), ChatID: chat, Status: entity.StatusRejected},
		} {
			c.CreatedAt = time.Now()
			require.NoError(t, collabs.Create(ctx, c))
		}

		accepted, removed, err := collabs.Accept(ctx, id("a1"), time.Now())
		require.NoError(t, err)
		assert.Equal(t, entity.StatusAccepted, accepted.Status)
		assert.Equal(t, 2, removed)

		ok, err := collabs.HasAccepted(ctx, chat)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = collabs.GetByID(ctx, id("a2"))
		assert.True(t, errors.Is(err, errors.CodeNotFound))

		_, _, err = collabs.Accept(ctx, id("a1"), time.Now())
		assert.True(t, errors.Is(err, errors.CodeInvalidState))
	})

	t.Run("RejectIsConditional", func(t *testing.T) {
		collabs := store.Collaborations()
		require.NoError(t, collabs.Create(ctx, &entity.Collaboration{
			ID: id("r1"), RequesterID: id("u1"), RecipientID: id("u3"),
			ChatID: id("chat-reject"), Status: entity.StatusPending, CreatedAt: time.Now(),
		}))

		updated, err := collabs.SetStatus(ctx, id("r1"), entity.StatusPending, entity.StatusRejected, time.Now())
		require.NoError(t, err)
		assert.Equal(t, entity.StatusRejected, updated.Status)

		_, err = collabs.SetStatus(ctx, id("r1"), entity.StatusPending, entity.StatusRejected, time.Now())
		assert.True(t, errors.Is(err, errors.CodeInvalidState))

		_, err = collabs.DeletePending(ctx, id("r1"))
		assert.True(t, errors.Is(err, errors.CodeInvalidState))
	})

	t.Run("MessagesLifecycle", func(t *testing.T) {
		messages := store.Messages()
		chat := id("chat-msg")
		base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

		require.NoError(t, messages.Create(ctx, &entity.Message{ID: id("m2"), ChatID: chat, SenderID: id("u1"), Text: "later", Timestamp: base.Add(time.Second)}))
		require.NoError(t, messages.Create(ctx, &entity.Message{ID: id("m1"), ChatID: chat, SenderID: id("u1"), Text: "first", Timestamp: base}))

		list, err := messages.ListByChat(ctx, chat)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, id("m1"), list[0].ID)

		m := list[0]
		m.Text = "edited"
		require.NoError(t, messages.Update(ctx, m))

		got, err := messages.GetByID(ctx, id("m1"))
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)

		require.NoError(t, messages.Delete(ctx, id("m1")))
		assert.True(t, errors.Is(messages.Delete(ctx, id("m1")), errors.CodeNotFound))
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore(), "")
}
