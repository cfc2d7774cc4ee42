package usecase

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// PaymentChannelUseCase manages the accounts customers pay into.
type PaymentChannelUseCase struct {
	channels repository.PaymentChannelRepository
}

// NewPaymentChannelUseCase constructs PaymentChannelUseCase.
func NewPaymentChannelUseCase(channels repository.PaymentChannelRepository) *PaymentChannelUseCase {
	return &PaymentChannelUseCase{channels: channels}
}

// Add parses "NAME|NUMBER|HOLDER" and creates or reactivates the channel.
func (u *PaymentChannelUseCase) Add(ctx context.Context, raw string) (*model.PaymentChannel, error) {
	in, err := ParsePaymentChannelInput(raw)
	if err != nil {
		return nil, err
	}
	return u.channels.Upsert(ctx, in.Method, in.Number, in.Holder)
}

func (u *PaymentChannelUseCase) List(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error) {
	return u.channels.List(ctx, activeOnly)
}

func (u *PaymentChannelUseCase) Toggle(ctx context.Context, id int64) (*model.PaymentChannel, error) {
	return u.channels.Toggle(ctx, id)
}

func (u *PaymentChannelUseCase) Delete(ctx context.Context, id int64) error {
	return u.channels.Delete(ctx, id)
}
