package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efisher/payadmin/internal/domain/model"
)

func TestBeneficiaryRepo_UpsertAndGet(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))
	ctx := context.Background()

	err := repo.Upsert(ctx, model.Beneficiary{
		Environment: model.EnvPre,
		BackendID:   "BEN-001",
		DisplayName: "ACME Ltd",
		Notes:       "primary supplier",
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, model.EnvPre, "BEN-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ACME Ltd", got.DisplayName)
	assert.Equal(t, "primary supplier", got.Notes)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestBeneficiaryRepo_GetMissing(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))

	got, err := repo.Get(context.Background(), model.EnvPre, "BEN-404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBeneficiaryRepo_UpsertOverwrites(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvPre, BackendID: "BEN-001", DisplayName: "Old Name"}))
	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvPre, BackendID: "BEN-001", DisplayName: "New Name"}))

	got, err := repo.Get(ctx, model.EnvPre, "BEN-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Name", got.DisplayName)

	all, err := repo.List(ctx, model.EnvPre)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBeneficiaryRepo_ListIsEnvScopedAndOrdered(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvPre, BackendID: "BEN-2", DisplayName: "Zeta"}))
	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvPre, BackendID: "BEN-1", DisplayName: "Alpha"}))
	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvProd, BackendID: "BEN-3", DisplayName: "Other"}))

	got, err := repo.List(ctx, model.EnvPre)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].DisplayName)
	assert.Equal(t, "Zeta", got[1].DisplayName)
}

func TestBeneficiaryRepo_Delete(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Beneficiary{Environment: model.EnvPre, BackendID: "BEN-1", DisplayName: "ACME"}))
	require.NoError(t, repo.Delete(ctx, model.EnvPre, "BEN-1"))

	got, err := repo.Get(ctx, model.EnvPre, "BEN-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBeneficiaryRepo_DeleteMissingIsNoop(t *testing.T) {
	repo := NewBeneficiaryRepo(setupTestDB(t))
	assert.NoError(t, repo.Delete(context.Background(), model.EnvPre, "BEN-404"))
}
