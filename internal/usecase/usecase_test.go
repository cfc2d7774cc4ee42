package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
	testhelpers "github.com/polkiloo/vendbot/internal/test"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func photo(fileID string) *model.Attachment {
	return &model.Attachment{FileID: fileID, Kind: model.AttachmentPhoto}
}

func seedItems(t *testing.T, store *testhelpers.MemoryStore, logins ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(logins))
	for _, login := range logins {
		it, err := store.Items().Add(context.Background(), login, "pw-"+login, "")
		if err != nil {
			t.Fatalf("seed item %s: %v", login, err)
		}
		ids = append(ids, it.ID)
	}
	return ids
}

func seedOrder(t *testing.T, store *testhelpers.MemoryStore, customerID int64) *model.Order {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Customers().Register(ctx, customerID, "buyer"); err != nil {
		t.Fatalf("register customer: %v", err)
	}
	order, err := store.Orders().Create(ctx, repository.NewOrder{
		CustomerID:   customerID,
		CustomerName: "buyer",
		Amount:       50000,
		PaymentProof: "proof",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}
