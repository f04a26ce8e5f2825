package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, PostgresDefaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, PostgresDefaultMaxIdleConns, cfg.MaxIdleConns)
	assert.Equal(t, PostgresDefaultConnMaxLifetime, cfg.ConnMaxLifetime)
	assert.Equal(t, PostgresDefaultConnMaxIdleTime, cfg.ConnMaxIdleTime)
	assert.Equal(t, PostgresTablePrefix, cfg.TablePrefix)
	assert.Equal(t, PostgresDefaultQueryTimeout, cfg.QueryTimeout)
	assert.False(t, cfg.AutoMigrate)
	assert.Empty(t, cfg.ConnectionString)
}

func TestPostgresLoader_EmptyConnectionString(t *testing.T) {
	_, err := NewPostgresLoader(PostgresConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), ErrMsgPostgresEmptyConnString)
}

func TestPostgresLoader_InvalidConnectionString(t *testing.T) {
	_, err := NewPostgresLoader(PostgresConfig{
		ConnectionString: "invalid://not-a-valid-connection-string",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoader)
	assert.Contains(t, err.Error(), ErrMsgPostgresConnectionFailed)
}

func TestPostgresConfig_ApplyDefaults(t *testing.T) {
	cfg := PostgresConfig{ConnectionString: "postgres://localhost/test?sslmode=disable"}
	cfg.applyDefaults()

	assert.Equal(t, PostgresDefaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, PostgresTablePrefix, cfg.TablePrefix)
	assert.Equal(t, PostgresDefaultQueryTimeout, cfg.QueryTimeout)
	assert.NotNil(t, cfg.Logger)
}
