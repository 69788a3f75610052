package repositories

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"ledgerdesk/internal/models"
)

type AuditLogsRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    AuditLogsRepository
	context context.Context
}

func (suite *AuditLogsRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewAuditLogsRepo(mock)
	suite.context = context.Background()
}

func (suite *AuditLogsRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestAuditLogsRepoTestSuite(t *testing.T) {
	suite.Run(t, new(AuditLogsRepoTestSuite))
}

func (suite *AuditLogsRepoTestSuite) TestCreate_AssignsIDAndTimestamp() {
	entry := &models.AuditEntry{
		Action:  "command:CREATE_CHECK",
		Detail:  `{"payee":"Home Depot"}`,
		Outcome: "ok",
	}
	suite.mock.ExpectExec(`
		INSERT INTO audit_logs \(id, action, actor, detail, outcome, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
	`).WithArgs(pgxmock.AnyArg(), entry.Action, "", entry.Detail, entry.Outcome, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, entry)
	assert.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), entry.ID)
	assert.False(suite.T(), entry.CreatedAt.IsZero())
}

func (suite *AuditLogsRepoTestSuite) TestList_FiltersByAction() {
	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "action", "actor", "detail", "outcome", "created_at"}).
		AddRow("a1", "duplicate_override", "operator", "fingerprint 12543|home depot|2026-08-24: re-billed", "overridden", now)

	suite.mock.ExpectQuery(`
		SELECT id, action, actor, detail, outcome, created_at
		FROM audit_logs
		WHERE \(\$1 = '' OR action = \$1\)
		ORDER BY created_at DESC
		LIMIT \$2 OFFSET \$3
	`).WithArgs("duplicate_override", 50, 0).WillReturnRows(rows)

	entries, err := suite.repo.List(suite.context, "duplicate_override", 50, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), entries, 1)
	assert.Equal(suite.T(), "operator", entries[0].Actor)
	assert.Equal(suite.T(), "overridden", entries[0].Outcome)
}

func (suite *AuditLogsRepoTestSuite) TestList_Empty() {
	rows := pgxmock.NewRows([]string{"id", "action", "actor", "detail", "outcome", "created_at"})
	suite.mock.ExpectQuery(`
		SELECT id, action, actor, detail, outcome, created_at
		FROM audit_logs
		WHERE \(\$1 = '' OR action = \$1\)
		ORDER BY created_at DESC
		LIMIT \$2 OFFSET \$3
	`).WithArgs("", 200, 0).WillReturnRows(rows)

	entries, err := suite.repo.List(suite.context, "", 200, 0)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), entries)
}
