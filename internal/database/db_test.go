package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatswap/internal/config"
)

func TestDSNUsesUTCSession(t *testing.T) {
	cfg := config.Config{DBUser: "app", DBPass: "secret", DBHost: "db", DBPort: "3306", DBName: "seatswap"}

	mc, err := mysql.ParseDSN(dsn(cfg))
	require.NoError(t, err)
	assert.Equal(t, "'+00:00'", mc.Params["time_zone"])
	assert.Equal(t, time.UTC, mc.Loc)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "seatswap", mc.DBName)
}
