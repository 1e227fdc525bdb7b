package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-noticeboard/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "board", Password: "p@ss/word", Name: "noticeboard"})
	assert.Equal(t, "postgres://board:p%40ss%2Fword@db:5432/noticeboard?sslmode=disable", dsn)

	dsn = DSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "board", Name: "nb", SSLMode: "require"})
	assert.Equal(t, "postgres://board:@db:6543/nb?sslmode=require", dsn)
}
