package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodhub/production-api/internal/config"
)

func TestDSN(t *testing.T) {
	raw := DSN(config.Config{DBUser: "api", DBPass: "s3cret", DBHost: "db.local", DBPort: "3307", DBName: "prod"})

	parsed, err := mysql.ParseDSN(raw)
	require.NoError(t, err)
	assert.Equal(t, "api", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Equal(t, "prod", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
}
