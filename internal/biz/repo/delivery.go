package repo

import (
	"context"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

// DeliveryRepo sends an approved reply out through the chat platform
type DeliveryRepo interface {
	Send(ctx context.Context, identity domain.Identity, text string) error
}
