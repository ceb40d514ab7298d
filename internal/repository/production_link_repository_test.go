package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

func TestCreateProductionLink_DuplicateExternalEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO production_links").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-ev_1'"})

	err = NewProductionLinkRepo(db).CreateProductionLink(context.Background(), &model.ProductionLink{
		ProviderID: 1, ProductionID: 2, ExternalEventID: "ev_1",
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindProductionLinkByExternalID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM production_links WHERE provider_id = \\? AND external_event_id = \\?").
		WithArgs(uint64(1), "ev_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewProductionLinkRepo(db).FindProductionLinkByExternalID(context.Background(), 1, "ev_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkListingApproved_OnlyFromPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE listings SET status = \\? WHERE id = \\? AND status = \\?").
		WithArgs(model.ListingApproved, uint64(4), model.ListingPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := NewListingRepo(db).MarkListingApproved(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
