package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestCurrentZakatableAssets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	repo := NewAssetRepo(&DB{Pool: mock})

	userID := uuid.Must(uuid.NewV4())
	rows := pgxmock.NewRows([]string{"id", "name", "category", "value_minor", "calculation_modifier"}).
		AddRow(uuid.Must(uuid.NewV4()), "savings", "CASH", int64(300000), 1.0).
		AddRow(uuid.Must(uuid.NewV4()), "shares", "INVESTMENTS", int64(100000), 0.3)

	mock.ExpectQuery(`SELECT id, name, category, value_minor, calculation_modifier\s+FROM zakatable_assets`).
		WithArgs(userID).
		WillReturnRows(rows)

	got, err := repo.CurrentZakatableAssets(context.Background(), userID)
	if err != nil {
		t.Fatalf("CurrentZakatableAssets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("assets = %d, want 2", len(got))
	}
	if got[0].Name != "savings" || got[1].CalculationModifier != 0.3 {
		t.Errorf("assets = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
