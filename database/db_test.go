package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gameshub/uvlhub/database/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBMigratesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hub.db")
	require.NoError(t, InitDB(dbPath))
	defer CloseDB()

	for _, table := range []any{&model.User{}, &model.DataSet{}, &model.DatasetComment{}, &model.DOIMapping{}} {
		assert.True(t, GetDB().Migrator().HasTable(table))
	}
	assert.True(t, GetDB().Migrator().HasColumn(&model.User{}, "Role"))

	// role falls back to the column default when a row is inserted without it
	require.NoError(t, GetDB().Exec("INSERT INTO users (email, password, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)", "raw@example.com", "x").Error)
	var u model.User
	require.NoError(t, GetDB().Where("email = ?", "raw@example.com").First(&u).Error)
	assert.Equal(t, model.RoleStandard, u.Role)
	assert.False(t, u.TwoFactorEnabled)

	err := GetDB().Where("email = ?", "missing@example.com").First(&u).Error
	assert.True(t, IsNotFound(err))

	f, err := os.Open(dbPath)
	require.NoError(t, err)
	defer f.Close()
	ok, err := IsSQLiteDB(f)
	require.NoError(t, err)
	assert.True(t, ok)
}
