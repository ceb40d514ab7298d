package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

func newSaleRepo(t *testing.T) (*TicketSaleRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTicketSaleRepo(db), mock
}

func sampleSale(tierID uint64) *model.TicketSale {
	return &model.TicketSale{
		ProviderID:     7,
		ExternalSaleID: "or_1-it_1",
		TierID:         &tierID,
		Quantity:       2,
		Price:          decimal.RequireFromString("25.00"),
		Subtotal:       decimal.RequireFromString("50.00"),
		Source:         model.SaleSourceWebhook,
	}
}

func TestRecordSale_DeductsSeatsInSameTransaction(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ticket_sales").WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(`UPDATE ticket_tiers SET seats_available = seats_available - \?`).
		WithArgs(2, uint64(3), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE ticket_sales SET seats_deducted = \?`).
		WithArgs(2, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sale := sampleSale(3)
	created, err := repo.RecordSale(context.Background(), sale)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(41), sale.ID)
	assert.Equal(t, 2, sale.SeatsDeducted)
	assert.Equal(t, model.SaleConfirmed, sale.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_InsufficientSeatsStillRecords(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ticket_sales").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("UPDATE ticket_tiers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	sale := sampleSale(3)
	created, err := repo.RecordSale(context.Background(), sale)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Zero(t, sale.SeatsDeducted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_DuplicateIsNotCreated(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ticket_sales").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	created, err := repo.RecordSale(context.Background(), sampleSale(3))
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_DuplicateAttachesShowLink(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ticket_sales").WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()
	mock.ExpectExec(`UPDATE ticket_sales SET show_link_id = \?`).
		WithArgs(uint64(9), uint64(7), "or_1-it_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sale := sampleSale(3)
	showLinkID := uint64(9)
	sale.ShowLinkID = &showLinkID
	created, err := repo.RecordSale(context.Background(), sale)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundSale_RestoresDeductedSeats(t *testing.T) {
	repo, mock := newSaleRepo(t)
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id, status, tier_id, seats_deducted FROM ticket_sales.*FOR UPDATE`).
		WithArgs(uint64(7), "or_1-it_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "tier_id", "seats_deducted"}).
			AddRow(41, model.SaleConfirmed, 3, 2))
	mock.ExpectExec("UPDATE ticket_sales SET status").
		WithArgs(model.SaleRefunded, at, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE ticket_tiers SET seats_available = LEAST`).
		WithArgs(2, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refunded, err := repo.RefundSale(context.Background(), 7, "or_1-it_1", at)
	require.NoError(t, err)
	assert.True(t, refunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundSale_AlreadyRefundedIsNoop(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, tier_id, seats_deducted").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "tier_id", "seats_deducted"}).
			AddRow(41, model.SaleRefunded, 3, 2))
	mock.ExpectRollback()

	refunded, err := repo.RefundSale(context.Background(), 7, "or_1-it_1", time.Now())
	require.NoError(t, err)
	assert.False(t, refunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundSale_UnknownSale(t *testing.T) {
	repo, mock := newSaleRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, tier_id, seats_deducted").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "tier_id", "seats_deducted"}))
	mock.ExpectRollback()

	_, err := repo.RefundSale(context.Background(), 7, "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
