package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type FingerprintRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    FingerprintRepository
	context context.Context
}

func (suite *FingerprintRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewFingerprintRepo(mock)
	suite.context = context.Background()
}

func (suite *FingerprintRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestFingerprintRepoTestSuite(t *testing.T) {
	suite.Run(t, new(FingerprintRepoTestSuite))
}

func sampleTxn() *ProcessedTxn {
	return &ProcessedTxn{
		Fingerprint: "12543|home depot|2026-08-24",
		Kind:        "Check",
		AmountCents: 12543,
		Payee:       "home depot",
		TxnDate:     time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}
}

func (suite *FingerprintRepoTestSuite) expectReserve(txn *ProcessedTxn) *pgxmock.ExpectedExec {
	return suite.mock.ExpectExec(`
		INSERT INTO processed_transactions \(fingerprint, kind, ledger_id, amount_cents, payee, txn_date, status, created_at\)
		VALUES \(\$1, \$2, '', \$3, \$4, \$5, \$6, NOW\(\)\)
		ON CONFLICT \(fingerprint\)
		DO UPDATE SET status = \$6, kind = \$2, created_at = NOW\(\)
		WHERE processed_transactions\.status = \$7
	`).WithArgs(txn.Fingerprint, txn.Kind, txn.AmountCents, txn.Payee, txn.TxnDate, TxnStatusPending, TxnStatusFailed)
}

func (suite *FingerprintRepoTestSuite) TestReserve_WinsFreshFingerprint() {
	txn := sampleTxn()
	suite.expectReserve(txn).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	won, err := suite.repo.Reserve(suite.context, txn)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), won)
}

func (suite *FingerprintRepoTestSuite) TestReserve_LosesClaimedFingerprint() {
	// An existing pending/posted/uncertain row makes the upsert a no-op.
	txn := sampleTxn()
	suite.expectReserve(txn).WillReturnResult(pgxmock.NewResult("INSERT", 0))

	won, err := suite.repo.Reserve(suite.context, txn)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), won)
}

func (suite *FingerprintRepoTestSuite) TestReserve_ReclaimsFailedAttempt() {
	// A failed row satisfies the WHERE clause, so the update counts.
	txn := sampleTxn()
	suite.expectReserve(txn).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := suite.repo.Reserve(suite.context, txn)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), won)
}

func (suite *FingerprintRepoTestSuite) TestReserve_DatabaseError() {
	txn := sampleTxn()
	suite.expectReserve(txn).WillReturnError(errors.New("database connection failed"))

	won, err := suite.repo.Reserve(suite.context, txn)
	assert.Error(suite.T(), err)
	assert.False(suite.T(), won)
}

func (suite *FingerprintRepoTestSuite) TestConfirm() {
	suite.mock.ExpectExec(`UPDATE processed_transactions SET ledger_id = \$2, status = \$3 WHERE fingerprint = \$1`).
		WithArgs("12543|home depot|2026-08-24", "chk-1002", TxnStatusPosted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.Confirm(suite.context, "12543|home depot|2026-08-24", "chk-1002")
	assert.NoError(suite.T(), err)
}

func (suite *FingerprintRepoTestSuite) TestFail_OnlyFlipsPendingRows() {
	suite.mock.ExpectExec(`UPDATE processed_transactions SET status = \$2 WHERE fingerprint = \$1 AND status = \$3`).
		WithArgs("12543|home depot|2026-08-24", TxnStatusFailed, TxnStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.Fail(suite.context, "12543|home depot|2026-08-24")
	assert.NoError(suite.T(), err)
}

func (suite *FingerprintRepoTestSuite) TestMarkUncertain() {
	suite.mock.ExpectExec(`UPDATE processed_transactions SET status = \$2 WHERE fingerprint = \$1`).
		WithArgs("12543|home depot|2026-08-24", TxnStatusUncertain).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.MarkUncertain(suite.context, "12543|home depot|2026-08-24")
	assert.NoError(suite.T(), err)
}

func (suite *FingerprintRepoTestSuite) TestLookup_Found() {
	created := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	suite.mock.ExpectQuery(`
		SELECT fingerprint, kind, ledger_id, amount_cents, payee, txn_date, status, created_at
		FROM processed_transactions
		WHERE fingerprint = \$1
	`).WithArgs("12543|home depot|2026-08-24").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "kind", "ledger_id", "amount_cents", "payee", "txn_date", "status", "created_at"}).
			AddRow("12543|home depot|2026-08-24", "Check", "chk-1002", int64(12543), "home depot",
				time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), TxnStatusPosted, created))

	row, err := suite.repo.Lookup(suite.context, "12543|home depot|2026-08-24")
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), row)
	assert.Equal(suite.T(), "chk-1002", row.LedgerID)
	assert.Equal(suite.T(), TxnStatusPosted, row.Status)
	assert.Equal(suite.T(), int64(12543), row.AmountCents)
}

func (suite *FingerprintRepoTestSuite) TestLookup_NotFound() {
	suite.mock.ExpectQuery(`
		SELECT fingerprint, kind, ledger_id, amount_cents, payee, txn_date, status, created_at
		FROM processed_transactions
		WHERE fingerprint = \$1
	`).WithArgs("0|nobody|2026-01-01").
		WillReturnError(pgx.ErrNoRows)

	row, err := suite.repo.Lookup(suite.context, "0|nobody|2026-01-01")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), row)
}
