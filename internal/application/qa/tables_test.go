package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/application/intent"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/config"
	apperrors "rbac-rag-api/pkg/errors"
)

func TestLoadTables_Defaults(t *testing.T) {
	tables, err := LoadTables(config.AccessConfig{})
	require.NoError(t, err)
	assert.NotNil(t, tables.Policy)
	assert.NotNil(t, tables.Classifier)
}

func TestLoadTables_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AccessConfig
		sentinel error
	}{
		{
			"role without departments",
			config.AccessConfig{Roles: map[string]config.RolePolicyConfig{"finance": {}}},
			rbac.ErrInvalidPolicy,
		},
		{
			"keyword for unknown department",
			config.AccessConfig{Keywords: map[string][]string{"legal": {"contract"}}},
			intent.ErrInvalidKeywords,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, err := LoadTables(tt.cfg)
			assert.Nil(t, tables)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeInvalidPolicy, appErr.Code)
			assert.True(t, apperrors.IsAppError(err))
		})
	}
}
