package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/polkiloo/vendbot/internal/config"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

type fakeOperator struct {
	pendingLimit int
	rejectReason string
	assigned     [2]int64
	approveErr   error
	undelivered  bool
}

func (f *fakeOperator) Pending(_ context.Context, limit int) ([]model.Order, error) {
	f.pendingLimit = limit
	return []model.Order{{ID: 3, CustomerID: 9, CustomerName: "ann", Amount: 50000}}, nil
}

func (f *fakeOperator) Approve(_ context.Context, id int64) (*model.Fulfillment, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &model.Fulfillment{
		Allocation: &model.Allocation{
			Order: model.Order{ID: id, Status: model.OrderStatusCompleted, Amount: 50000},
			Item:  model.Item{ID: 4, Login: "a@b.c", Secret: "pw"},
		},
		Delivered: !f.undelivered,
	}, nil
}

func (f *fakeOperator) Reject(_ context.Context, id int64, reason string) (*model.Order, error) {
	f.rejectReason = reason
	return &model.Order{ID: id, Status: model.OrderStatusCancelled}, nil
}

func (f *fakeOperator) Assign(_ context.Context, orderID, itemID int64) (*model.Order, error) {
	f.assigned = [2]int64{orderID, itemID}
	return &model.Order{ID: orderID, ItemID: &itemID}, nil
}

type harness struct {
	op       *fakeOperator
	served   config.Args
	factArgs config.Args
	released bool
	serveErr error
	factErr  error
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Serve: func(_ context.Context, args config.Args) error {
			h.served = args
			return h.serveErr
		},
		Operator: func(_ context.Context, args config.Args) (Operator, func(), error) {
			h.factArgs = args
			if h.factErr != nil {
				return nil, nil, h.factErr
			}
			return h.op, func() { h.released = true }, nil
		},
	}
}

func execute(t *testing.T, h *harness, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(h.deps())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(DefaultDependencies())
	require.NotNil(t, cmd)
	assert.Equal(t, "vendbot", cmd.Use)

	for _, path := range [][]string{{"serve"}, {"order", "pending"}, {"order", "approve"}, {"order", "reject"}, {"order", "assign"}, {"hash-password"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("json"))
}

func TestServePassesFlagsThrough(t *testing.T) {
	h := &harness{}
	_, err := execute(t, h, "serve", "-a", ":9090", "-config", "bot.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Args{"-a", ":9090", "-config", "bot.yaml"}, h.served)

	h.serveErr = errors.New("listen failed")
	_, err = execute(t, h, "serve")
	require.ErrorContains(t, err, "listen failed")
}

func TestOrderPending(t *testing.T) {
	h := &harness{op: &fakeOperator{}}
	out, err := execute(t, h, "--config", "bot.yaml", "order", "pending", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, h.op.pendingLimit)
	assert.Equal(t, config.Args{"-config", "bot.yaml"}, h.factArgs)
	assert.True(t, h.released)
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "Rp 50.000")

	out, err = execute(t, h, "--json", "order", "pending")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["))
	assert.Nil(t, h.factArgs)
}

func TestOrderApprove(t *testing.T) {
	h := &harness{op: &fakeOperator{}}
	out, err := execute(t, h, "order", "approve", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "order #7 completed with item #4")
	assert.NotContains(t, out, "pw")

	h.op.undelivered = true
	out, err = execute(t, h, "order", "approve", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: pw")

	h.op.approveErr = domainErrors.ErrStockExhausted
	_, err = execute(t, h, "order", "approve", "7")
	require.ErrorIs(t, err, domainErrors.ErrStockExhausted)

	_, err = execute(t, h, "order", "approve", "x")
	require.ErrorIs(t, err, domainErrors.ErrValidation)
}

func TestOrderRejectAndAssign(t *testing.T) {
	h := &harness{op: &fakeOperator{}}
	out, err := execute(t, h, "order", "reject", "5", "fake", "receipt")
	require.NoError(t, err)
	assert.Equal(t, "fake receipt", h.op.rejectReason)
	assert.Contains(t, out, "order #5 cancelled")

	out, err = execute(t, h, "order", "assign", "5", "12")
	require.NoError(t, err)
	assert.Equal(t, [2]int64{5, 12}, h.op.assigned)
	assert.Contains(t, out, "item #12 assigned to order #5")

	_, err = execute(t, h, "order", "assign", "5")
	require.Error(t, err)
}

func TestOrderFactoryFailure(t *testing.T) {
	h := &harness{factErr: errors.New("no database")}
	_, err := execute(t, h, "order", "pending")
	require.ErrorContains(t, err, "no database")
	assert.False(t, h.released)
}

func TestHashPassword(t *testing.T) {
	h := &harness{}
	out, err := execute(t, h, "hash-password", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	cmd := NewRootCommand(h.deps())
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-password"})
	require.NoError(t, cmd.Execute())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(buf.String())), []byte("from-stdin")))
}
