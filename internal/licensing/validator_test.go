package licensing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nf-licencas.app/cloud/internal/testutil"
	"nf-licencas.app/cloud/models"
	"nf-licencas.app/cloud/storage"
)

var checkedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, licenses ...models.License) (*Validator, *testutil.RecordingStorage) {
	t.Helper()
	store := testutil.NewRecordingStorage(testutil.TestStorage())
	for _, license := range licenses {
		require.NoError(t, store.Storage.SaveLicense(context.Background(), &license))
	}

	v := NewValidator(store)
	v.now = func() time.Time { return checkedAt }
	return v, store
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AB12-CD34", "AB12-CD34"},
		{"  ab12-cd34 ", "AB12-CD34"},
		{"@#AB12-CD34", "AB12-CD34"},
		{" @# ab12-cd34", "AB12-CD34"},
		{"@@AB12-CD34", "@@AB12-CD34"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.in), "NormalizeCode(%q)", tt.in)
	}
}

func TestValidate_Active(t *testing.T) {
	license := testutil.CreateTestLicense("TESTE-1234", "a@b.com", checkedAt.AddDate(0, 0, -10))
	v, store := newTestValidator(t, license)

	result, err := v.Validate(context.Background(), "TESTE-1234")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.ExpiresAt)
	assert.True(t, result.ExpiresAt.Equal(license.ExpiresAt))

	assert.Empty(t, store.StatusUpdates)
	stored, _ := store.GetLicense(context.Background(), "TESTE-1234")
	assert.Equal(t, models.StatusActive, stored.Status)
}

func TestValidate_AcceptsDisplayForm(t *testing.T) {
	license := testutil.CreateTestLicense("AB12-CD34", "a@b.com", checkedAt)
	v, _ := newTestValidator(t, license)

	result, err := v.Validate(context.Background(), " @#ab12-cd34 ")
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestValidate_ExpiresLazilyOnce(t *testing.T) {
	ctx := context.Background()
	license := testutil.CreateTestLicense("OLD0-0001", "a@b.com", checkedAt.AddDate(0, 0, -31))
	v, store := newTestValidator(t, license)

	first, err := v.Validate(ctx, "OLD0-0001")
	require.NoError(t, err)
	assert.False(t, first.OK)
	assert.Equal(t, ReasonExpired, first.Reason)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(license.ExpiresAt))
	assert.Equal(t, []string{"OLD0-0001=" + models.StatusExpired}, store.StatusUpdates)

	second, err := v.Validate(ctx, "OLD0-0001")
	require.NoError(t, err)
	assert.False(t, second.OK)
	assert.Equal(t, "LICENCA_EXPIRADO", second.Reason)
	assert.Len(t, store.StatusUpdates, 1, "an expired record must not be rewritten")
}

func TestValidate_ExpiryBoundaryIsValid(t *testing.T) {
	license := testutil.CreateTestLicense("EDGE-0001", "a@b.com", checkedAt.AddDate(0, 0, -30))
	v, store := newTestValidator(t, license)

	result, err := v.Validate(context.Background(), "EDGE-0001")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, store.StatusUpdates)
}

func TestValidate_UpdateFailureStillReportsExpired(t *testing.T) {
	ctx := context.Background()
	license := testutil.CreateTestLicense("OLD0-0002", "a@b.com", checkedAt.AddDate(0, 0, -45))
	v, store := newTestValidator(t, license)
	store.UpdateErr = storage.ErrUnavailable

	result, err := v.Validate(ctx, "OLD0-0002")
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, result.Reason)

	// The record is still active, so the next check tries the transition again.
	store.UpdateErr = nil
	result, err = v.Validate(ctx, "OLD0-0002")
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, result.Reason)
	assert.Len(t, store.StatusUpdates, 2)
}

func TestValidate_Missing(t *testing.T) {
	v, store := newTestValidator(t)

	result, err := v.Validate(context.Background(), "NOPE-0000")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Nil(t, result.ExpiresAt)
	assert.Empty(t, store.StatusUpdates)
	assert.Zero(t, store.Saves)
}

func TestValidate_ManualStatus(t *testing.T) {
	license := testutil.CreateTestLicense("BLCK-0001", "a@b.com", checkedAt)
	license.Status = "bloqueado"
	v, store := newTestValidator(t, license)

	result, err := v.Validate(context.Background(), "BLCK-0001")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "LICENCA_BLOQUEADO", result.Reason)
	assert.Empty(t, store.StatusUpdates)
}

func TestValidate_ReadFailure(t *testing.T) {
	v, store := newTestValidator(t)
	store.GetErr = storage.ErrUnavailable

	_, err := v.Validate(context.Background(), "AB12-CD34")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}
