package repositories

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"ledgerdesk/internal/models"
)

type WorkWeekRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    WorkWeekRepository
	context context.Context
}

func (suite *WorkWeekRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewWorkWeekRepo(mock)
	suite.context = context.Background()
}

func (suite *WorkWeekRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestWorkWeekRepoTestSuite(t *testing.T) {
	suite.Run(t, new(WorkWeekRepoTestSuite))
}

func (suite *WorkWeekRepoTestSuite) TestGetWeek() {
	rows := pgxmock.NewRows([]string{"day", "quantity", "item", "job", "cost", "description"}).
		AddRow(0, 1.0, "Labor", "Smith Remodel", 250.0, "").
		AddRow(1, 1.0, "Labor", "Smith Remodel", 250.0, "").
		AddRow(4, 0.5, "Labor", "Jones Deck", 250.0, "half day")

	suite.mock.ExpectQuery(`
		SELECT day, quantity, item, job, cost, description
		FROM work_days
		WHERE vendor = \$1 AND week_ref = \$2
		ORDER BY day
	`).WithArgs("Jaciel Hernandez", "2026-W35").
		WillReturnRows(rows)

	week, err := suite.repo.GetWeek(suite.context, "Jaciel Hernandez", "2026-W35")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), week.Days, 3)
	assert.Equal(suite.T(), "Smith Remodel", week.Days[models.Monday].Job)
	assert.Equal(suite.T(), 0.5, week.Days[models.Friday].Quantity)
	assert.Equal(suite.T(), "half day", week.Days[models.Friday].Desc)
}

func (suite *WorkWeekRepoTestSuite) TestGetWeek_Empty() {
	suite.mock.ExpectQuery(`
		SELECT day, quantity, item, job, cost, description
		FROM work_days
		WHERE vendor = \$1 AND week_ref = \$2
		ORDER BY day
	`).WithArgs("Jaciel Hernandez", "2026-W36").
		WillReturnRows(pgxmock.NewRows([]string{"day", "quantity", "item", "job", "cost", "description"}))

	week, err := suite.repo.GetWeek(suite.context, "Jaciel Hernandez", "2026-W36")
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), week.Days)
}

func (suite *WorkWeekRepoTestSuite) TestUpsertDay() {
	day := models.WorkDay{
		Day:      models.Wednesday,
		Quantity: 1,
		Item:     "Labor",
		Job:      "Smith Remodel",
		Cost:     250,
	}

	suite.mock.ExpectExec(`
		INSERT INTO work_days \(vendor, week_ref, day, quantity, item, job, cost, description, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, NOW\(\)\)
		ON CONFLICT \(vendor, week_ref, day\)
		DO UPDATE SET quantity = \$4, item = \$5, job = \$6, cost = \$7, description = \$8, updated_at = NOW\(\)
	`).WithArgs("Jaciel Hernandez", "2026-W35", 2, 1.0, "Labor", "Smith Remodel", 250.0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.UpsertDay(suite.context, "Jaciel Hernandez", "2026-W35", day)
	assert.NoError(suite.T(), err)
}

func (suite *WorkWeekRepoTestSuite) TestDeleteDay_Existing() {
	suite.mock.ExpectExec(`DELETE FROM work_days WHERE vendor = \$1 AND week_ref = \$2 AND day = \$3`).
		WithArgs("Jaciel Hernandez", "2026-W35", 4).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := suite.repo.DeleteDay(suite.context, "Jaciel Hernandez", "2026-W35", models.Friday)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), removed)
}

func (suite *WorkWeekRepoTestSuite) TestDeleteDay_Absent() {
	suite.mock.ExpectExec(`DELETE FROM work_days WHERE vendor = \$1 AND week_ref = \$2 AND day = \$3`).
		WithArgs("Jaciel Hernandez", "2026-W35", 6).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := suite.repo.DeleteDay(suite.context, "Jaciel Hernandez", "2026-W35", models.Sunday)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), removed)
}

func (suite *WorkWeekRepoTestSuite) TestDeleteWeek() {
	suite.mock.ExpectExec(`DELETE FROM work_days WHERE vendor = \$1 AND week_ref = \$2`).
		WithArgs("Jaciel Hernandez", "2026-W35").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	err := suite.repo.DeleteWeek(suite.context, "Jaciel Hernandez", "2026-W35")
	assert.NoError(suite.T(), err)
}

func (suite *WorkWeekRepoTestSuite) TestListWeek_GroupsByVendor() {
	rows := pgxmock.NewRows([]string{"vendor", "day", "quantity", "item", "job", "cost", "description"}).
		AddRow("Alberto Gomez", 0, 1.0, "Labor", "", 200.0, "").
		AddRow("Alberto Gomez", 1, 1.0, "Labor", "", 200.0, "").
		AddRow("Jaciel Hernandez", 0, 1.0, "Labor", "Smith Remodel", 250.0, "")

	suite.mock.ExpectQuery(`
		SELECT vendor, day, quantity, item, job, cost, description
		FROM work_days
		WHERE week_ref = \$1
		ORDER BY vendor, day
	`).WithArgs("2026-W35").
		WillReturnRows(rows)

	weeks, err := suite.repo.ListWeek(suite.context, "2026-W35")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), weeks, 2)
	assert.Equal(suite.T(), "Alberto Gomez", weeks[0].Vendor)
	assert.Len(suite.T(), weeks[0].Days, 2)
	assert.Equal(suite.T(), "Jaciel Hernandez", weeks[1].Vendor)
	assert.Len(suite.T(), weeks[1].Days, 1)
}

func (suite *WorkWeekRepoTestSuite) TestListWeek_QueryError() {
	suite.mock.ExpectQuery(`
		SELECT vendor, day, quantity, item, job, cost, description
		FROM work_days
		WHERE week_ref = \$1
		ORDER BY vendor, day
	`).WithArgs("2026-W35").
		WillReturnError(errors.New("database connection failed"))

	weeks, err := suite.repo.ListWeek(suite.context, "2026-W35")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), weeks)
}
