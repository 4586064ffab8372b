package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/app?sslmode=disable":   "pgx5://u:p@db:5432/app?sslmode=disable",
		"postgresql://u:p@db:5432/app?sslmode=disable": "pgx5://u:p@db:5432/app?sslmode=disable",
		"pgx5://already/converted":                     "pgx5://already/converted",
	}
	for in, want := range cases {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}
