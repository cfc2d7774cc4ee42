package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/server/http/dto"
	"github.com/polkiloo/vendbot/internal/server/http/middleware"
	"github.com/polkiloo/vendbot/internal/storage/memory"
	testhelpers "github.com/polkiloo/vendbot/internal/test"
	"github.com/polkiloo/vendbot/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func performRequest(t *testing.T, method, route, target string, handler gin.HandlerFunc, setup func(*gin.Context), body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, route, func(c *gin.Context) {
		if setup != nil {
			setup(c)
		}
		handler(c)
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var out dto.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestCurrentOperatorID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentOperatorID(c); got != 0 {
		t.Fatalf("expected 0 when not set, got %d", got)
	}

	c.Set(middleware.OperatorIDContextKey, int64(42))
	if got := CurrentOperatorID(c); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	password := testhelpers.RandomString(16)
	body, _ := json.Marshal(dto.LoginRequest{OperatorID: 7, Password: password})
	handler := NewAuthHandler(testhelpers.OperatorFacadeStub{LoginFn: func(_ context.Context, id int64, got string) (string, error) {
		if id != 7 || got != password {
			t.Fatalf("unexpected credentials passed to facade: %d %q", id, got)
		}
		return "session-token", nil
	}})
	resp := performRequest(t, http.MethodPost, "/login", "/login", handler.Login, nil, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Authorization"); got != "Bearer session-token" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	var token dto.TokenResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &token); err != nil || token.Token != "session-token" {
		t.Fatalf("unexpected token body %q", resp.Body.String())
	}
	result := resp.Result()
	t.Cleanup(func() {
		_ = result.Body.Close()
	})
	found := false
	for _, cookie := range result.Cookies() {
		if cookie.Name == "vendbot_token" && cookie.Value == "session-token" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected auth cookie named vendbot_token")
	}
}

func TestAuthHandlerLoginFailures(t *testing.T) {
	tests := []struct {
		name   string
		facade testhelpers.OperatorFacadeStub
		body   []byte
		status int
	}{
		{name: "bad json", body: []byte("{"), status: http.StatusBadRequest},
		{
			name: "invalid credentials",
			facade: testhelpers.OperatorFacadeStub{LoginFn: func(context.Context, int64, string) (string, error) {
				return "", domainErrors.ErrInvalidCredentials
			}},
			body:   []byte(`{"operator_id":1,"password":"x"}`),
			status: http.StatusUnauthorized,
		},
		{
			name: "internal",
			facade: testhelpers.OperatorFacadeStub{LoginFn: func(context.Context, int64, string) (string, error) {
				return "", errors.New("boom")
			}},
			body:   []byte(`{"operator_id":1,"password":"x"}`),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performRequest(t, http.MethodPost, "/login", "/login", NewAuthHandler(tt.facade).Login, nil, tt.body, jsonHeaders)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
		})
	}
}

func TestOrderHandlerPending(t *testing.T) {
	var gotLimit int
	facade := testhelpers.OperatorFacadeStub{PendingFn: func(_ context.Context, limit int) ([]model.Order, error) {
		gotLimit = limit
		return []model.Order{
			{ID: 1, CustomerID: 9, Amount: 50000, Status: model.OrderStatusPending, CreatedAt: time.Unix(100, 0).UTC()},
			{ID: 2, CustomerID: 9, Amount: 50000, Status: model.OrderStatusPending, CreatedAt: time.Unix(200, 0).UTC()},
		}, nil
	}}
	handler := NewOrderHandler(facade, discardLogger())

	resp := performRequest(t, http.MethodGet, "/orders/pending", "/orders/pending?limit=5", handler.Pending, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotLimit != 5 {
		t.Fatalf("expected limit 5, got %d", gotLimit)
	}
	var orders []dto.OrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != 1 || orders[0].Status != "pending" {
		t.Fatalf("unexpected orders %+v", orders)
	}

	resp = performRequest(t, http.MethodGet, "/orders/pending", "/orders/pending?limit=zero", handler.Pending, nil, nil, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.Code)
	}

	empty := NewOrderHandler(testhelpers.OperatorFacadeStub{}, discardLogger())
	resp = performRequest(t, http.MethodGet, "/orders/pending", "/orders/pending", empty.Pending, nil, nil, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for empty queue, got %d", resp.Code)
	}
}

func TestOrderHandlerGet(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OperatorFacadeStub{OrderFn: func(_ context.Context, id int64) (*model.Order, error) {
		if id == 404 {
			return nil, domainErrors.ErrNotFound
		}
		return &model.Order{ID: id, Status: model.OrderStatusPending}, nil
	}}, discardLogger())

	resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/3", handler.Get, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/404", handler.Get, nil, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/abc", handler.Get, nil, nil, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
}

func TestOrderHandlerApprove(t *testing.T) {
	facade := testhelpers.OperatorFacadeStub{ApproveFn: func(_ context.Context, id int64) (*model.Fulfillment, error) {
		return &model.Fulfillment{
			Allocation:  &model.Allocation{Order: model.Order{ID: id, Status: model.OrderStatusCompleted}, Item: model.Item{ID: 11, Secret: "pw"}},
			Delivered:   false,
			DeliveryErr: errors.New("chat not found"),
		}, nil
	}}
	handler := NewOrderHandler(facade, discardLogger())
	setup := func(c *gin.Context) { c.Set(middleware.OperatorIDContextKey, int64(1)) }

	resp := performRequest(t, http.MethodPost, "/orders/:id/approve", "/orders/5/approve", handler.Approve, setup, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("pw")) {
		t.Fatalf("credential leaked in response %q", resp.Body.String())
	}
	var out dto.FulfillmentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Order.ID != 5 || out.ItemID != 11 || out.Delivered || out.DeliveryError != "chat not found" {
		t.Fatalf("unexpected fulfillment %+v", out)
	}
}

func TestOrderHandlerApproveErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		state  string
	}{
		{name: "not found", err: domainErrors.ErrNotFound, status: http.StatusNotFound},
		{name: "finalized", err: &domainErrors.AlreadyFinalizedError{OrderID: 5, Status: "completed"}, status: http.StatusConflict, state: "completed"},
		{name: "conflict", err: domainErrors.ErrAllocationConflict, status: http.StatusConflict},
		{name: "exhausted", err: domainErrors.ErrStockExhausted, status: http.StatusUnprocessableEntity, state: "pending"},
		{name: "storage", err: &domainErrors.StorageError{Op: "approve", Err: errors.New("down")}, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewOrderHandler(testhelpers.OperatorFacadeStub{ApproveFn: func(context.Context, int64) (*model.Fulfillment, error) {
				return nil, tt.err
			}}, discardLogger())
			resp := performRequest(t, http.MethodPost, "/orders/:id/approve", "/orders/5/approve", handler.Approve, nil, nil, nil)
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			if got := decodeError(t, resp).Status; got != tt.state {
				t.Fatalf("expected status field %q, got %q", tt.state, got)
			}
		})
	}
}

func TestOrderHandlerReject(t *testing.T) {
	var gotReason string
	handler := NewOrderHandler(testhelpers.OperatorFacadeStub{RejectFn: func(_ context.Context, id int64, reason string) (*model.Order, error) {
		gotReason = reason
		return &model.Order{ID: id, Status: model.OrderStatusCancelled, Notes: &reason}, nil
	}}, discardLogger())

	body, _ := json.Marshal(dto.RejectRequest{Reason: "fake receipt"})
	resp := performRequest(t, http.MethodPost, "/orders/:id/reject", "/orders/8/reject", handler.Reject, nil, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotReason != "fake receipt" {
		t.Fatalf("unexpected reason %q", gotReason)
	}

	resp = performRequest(t, http.MethodPost, "/orders/:id/reject", "/orders/8/reject", handler.Reject, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 without body, got %d", resp.Code)
	}
	if gotReason != "" {
		t.Fatalf("expected empty reason, got %q", gotReason)
	}
}

func TestOrderHandlerAssign(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OperatorFacadeStub{}, discardLogger())
	resp := performRequest(t, http.MethodPost, "/orders/:id/assign", "/orders/4/assign", handler.Assign, nil, []byte(`{"item_id":9}`), jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out dto.OrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out.ItemID == nil || *out.ItemID != 9 {
		t.Fatalf("unexpected assign body %q", resp.Body.String())
	}

	resp = performRequest(t, http.MethodPost, "/orders/:id/assign", "/orders/4/assign", handler.Assign, nil, []byte(`{}`), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without item id, got %d", resp.Code)
	}

	sold := NewOrderHandler(testhelpers.OperatorFacadeStub{AssignFn: func(context.Context, int64, int64) (*model.Order, error) {
		return nil, domainErrors.ErrAllocationConflict
	}}, discardLogger())
	resp = performRequest(t, http.MethodPost, "/orders/:id/assign", "/orders/4/assign", sold.Assign, nil, []byte(`{"item_id":9}`), jsonHeaders)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for sold item, got %d", resp.Code)
	}
}

func TestItemHandlerAdd(t *testing.T) {
	var gotLine string
	handler := NewItemHandler(testhelpers.OperatorFacadeStub{AddItemFn: func(_ context.Context, raw string) (*model.Item, error) {
		gotLine = raw
		return &model.Item{ID: 3, Login: "a@b.c", Secret: "pw"}, nil
	}})

	resp := performRequest(t, http.MethodPost, "/items", "/items", handler.Add, nil, []byte(`{"login":"a@b.c","secret":"pw","notes":"gift"}`), jsonHeaders)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if gotLine != "a@b.c|pw|gift" {
		t.Fatalf("unexpected item line %q", gotLine)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte(`"pw"`)) {
		t.Fatalf("secret leaked in response %q", resp.Body.String())
	}

	resp = performRequest(t, http.MethodPost, "/items", "/items", handler.Add, nil, []byte(`{"login":"a@b.c"}`), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without secret, got %d", resp.Code)
	}

	dup := NewItemHandler(testhelpers.OperatorFacadeStub{AddItemFn: func(context.Context, string) (*model.Item, error) {
		return nil, domainErrors.ErrAlreadyExists
	}})
	resp = performRequest(t, http.MethodPost, "/items", "/items", dup.Add, nil, []byte(`{"login":"a@b.c","secret":"pw"}`), jsonHeaders)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}

	invalid := NewItemHandler(testhelpers.OperatorFacadeStub{AddItemFn: func(context.Context, string) (*model.Item, error) {
		return nil, domainErrors.Invalid("login", "must look like an email address")
	}})
	resp = performRequest(t, http.MethodPost, "/items", "/items", invalid.Add, nil, []byte(`{"login":"nope","secret":"pw"}`), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid login, got %d", resp.Code)
	}
}

func TestItemHandlerListAndDelete(t *testing.T) {
	var gotForce bool
	handler := NewItemHandler(testhelpers.OperatorFacadeStub{
		AvailableItemsFn: func(context.Context, int) ([]model.Item, error) {
			return []model.Item{{ID: 1, Login: "a@b.c", Secret: "pw"}}, nil
		},
		DeleteItemFn: func(_ context.Context, id int64, force bool) error {
			gotForce = force
			if id == 2 && !force {
				return domainErrors.ErrForeignKeyConflict
			}
			return nil
		},
	})

	resp := performRequest(t, http.MethodGet, "/items", "/items", handler.List, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var items []dto.ItemResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("unexpected items body %q", resp.Body.String())
	}

	resp = performRequest(t, http.MethodDelete, "/items/:id", "/items/2", handler.Delete, nil, nil, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 without force, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodDelete, "/items/:id", "/items/2?force=true", handler.Delete, nil, nil, nil)
	if resp.Code != http.StatusNoContent || !gotForce {
		t.Fatalf("expected forced delete, got %d force=%v", resp.Code, gotForce)
	}
}

func TestItemHandlerStats(t *testing.T) {
	handler := NewItemHandler(testhelpers.OperatorFacadeStub{StatsFn: func(context.Context) (model.SalesStats, error) {
		return model.SalesStats{Customers: 3, ItemsAvailable: 2, CompletedTotal: 4, RevenueTotal: 200000}, nil
	}})
	resp := performRequest(t, http.MethodGet, "/stats", "/stats", handler.Stats, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var st dto.StatsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Customers != 3 || st.RevenueTotal != 200000 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWebhookHandler(t *testing.T) {
	queue := &testhelpers.UpdateQueueStub{}
	handler := NewWebhookHandler(queue, "s3cret", discardLogger())
	update := []byte(`{"update_id":77,"message":{"message_id":1,"from":{"id":5,"first_name":"Ann"},"chat":{"id":5},"text":"/start"}}`)

	resp := performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/wrong", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for wrong secret, got %d", resp.Code)
	}
	if len(queue.Updates) != 0 {
		t.Fatal("expected nothing queued for wrong secret")
	}

	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(queue.Updates) != 1 || queue.Updates[0].ID != 77 || queue.Updates[0].ChatID != 5 {
		t.Fatalf("unexpected queued updates %+v", queue.Updates)
	}

	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, []byte("not json"), jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected malformed update to be acknowledged, got %d", resp.Code)
	}
	if len(queue.Updates) != 1 {
		t.Fatal("expected malformed update to be dropped")
	}

	queue.Err = errors.New("queue closed")
	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue refuses, got %d", resp.Code)
	}
	queue.Err = nil

	disabled := NewWebhookHandler(queue, "", discardLogger())
	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/anything", disabled.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected disabled webhook to 404, got %d", resp.Code)
	}
}

func TestWebhookRedeliveryAfterRefusal(t *testing.T) {
	handled := &testhelpers.UpdateHandlerStub{}
	dispatcher := worker.NewUpdateDispatcher(handled, nil, memory.NewDeduplicator(time.Hour), 1, time.Second, discardLogger())
	handler := NewWebhookHandler(dispatcher, "s3cret", discardLogger())
	update := []byte(`{"update_id":78,"message":{"message_id":1,"from":{"id":5,"first_name":"Ann"},"chat":{"id":5},"text":"/start"}}`)

	resp := performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the dispatcher runs, got %d", resp.Code)
	}

	dispatcher.Start(context.Background())
	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected redelivery to be accepted, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodPost, "/webhook/:secret", "/webhook/s3cret", handler.Receive, nil, update, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected duplicate to be acknowledged, got %d", resp.Code)
	}
	dispatcher.Stop()

	if got := handled.Snapshot(); len(got) != 1 || got[0].ID != 78 {
		t.Fatalf("expected update 78 handled once, got %+v", got)
	}
}

type healthStub struct{ err error }

func (h healthStub) HealthCheck(context.Context) error { return h.err }

func TestHealth(t *testing.T) {
	resp := performRequest(t, http.MethodGet, "/healthz", "/healthz", NewHealthHandler(nil, discardLogger()).Health, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 without checker, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/healthz", "/healthz", NewHealthHandler(healthStub{}, discardLogger()).Health, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for healthy database, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/healthz", "/healthz", NewHealthHandler(healthStub{err: errors.New("down")}, discardLogger()).Health, nil, nil, nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unreachable database, got %d", resp.Code)
	}
}
