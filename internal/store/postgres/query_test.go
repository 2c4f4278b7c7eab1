package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

func TestFilterBuild(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var f filter
	f.where("wallet = $%d", "0xA")
	f.window("date", domain.ListOpts{Since: &since})

	query, args := f.build("SELECT id FROM history_records", "date DESC", domain.ListOpts{Limit: 10, Offset: 20})
	assert.Equal(t,
		"SELECT id FROM history_records WHERE wallet = $1 AND date >= $2 ORDER BY date DESC LIMIT $3 OFFSET $4",
		query)
	assert.Equal(t, []any{"0xA", since, 10, 20}, args)
}

func TestFilterBuildEmpty(t *testing.T) {
	var f filter
	query, args := f.build("SELECT id FROM audit_log", "", domain.ListOpts{})
	assert.Equal(t, "SELECT id FROM audit_log", query)
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://duel:pw@db:5432/duel?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "duel", User: "duel", Password: "pw"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}
