package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/amqadri/nisab-keeper/internal/model"
)

// AssetSource provides a read-only view of a user's currently zakatable
// holdings. The lifecycle engine never writes through it.
type AssetSource interface {
	CurrentZakatableAssets(ctx context.Context, userID uuid.UUID) ([]model.Asset, error)
}
