package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/amqadri/nisab-keeper/internal/model"
)

// AssetRepo implements repository.AssetSource over the zakatable_assets
// table. It is strictly read-only; asset management happens elsewhere.
type AssetRepo struct{ db *DB }

// NewAssetRepo constructs an asset source.
func NewAssetRepo(db *DB) *AssetRepo { return &AssetRepo{db: db} }

// CurrentZakatableAssets returns the user's holdings in creation order.
func (r *AssetRepo) CurrentZakatableAssets(ctx context.Context, userID uuid.UUID) ([]model.Asset, error) {
	const q = `
SELECT id, name, category, value_minor, calculation_modifier
FROM zakatable_assets
WHERE user_id=$1
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.Value, &a.CalculationModifier); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
