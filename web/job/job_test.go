package job

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/fakenodo"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T) *service.Services {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HUB_UPLOADS_FOLDER", filepath.Join(dir, "uploads"))
	require.NoError(t, database.InitDB(filepath.Join(dir, "hub.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	stub := httptest.NewServer(fakenodo.NewServer().Handler())
	t.Cleanup(stub.Close)
	return service.NewServicesWith(database.GetDB(), nil, service.ZenodoOptions{
		BaseURL:    stub.URL + "/deposit/depositions",
		RetryTotal: 1,
		Backoff:    time.Millisecond,
		RateWait:   time.Millisecond,
		Client:     stub.Client(),
	})
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestCleanTempUploadsJob(t *testing.T) {
	t.Setenv("HUB_UPLOADS_FOLDER", t.TempDir())
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	root := filepath.Join(os.Getenv("HUB_UPLOADS_FOLDER"), "temp")
	stale := filepath.Join(root, "1", "old.csv")
	fresh := filepath.Join(root, "1", "new.csv")
	abandoned := filepath.Join(root, "2", "old.csv")
	touch(t, stale, now.Add(-25*time.Hour))
	touch(t, fresh, now.Add(-time.Hour))
	touch(t, abandoned, now.Add(-48*time.Hour))

	j := NewCleanTempUploadsJob()
	j.now = func() time.Time { return now }
	j.Run()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.NoDirExists(t, filepath.Join(root, "2"))
}

func TestCleanTempUploadsJobWithoutFolder(t *testing.T) {
	t.Setenv("HUB_UPLOADS_FOLDER", filepath.Join(t.TempDir(), "missing"))
	assert.NotPanics(t, NewCleanTempUploadsJob().Run)
}

func TestAuditCleanupJob(t *testing.T) {
	s := newTestServices(t)
	t.Setenv("HUB_AUDIT_RETENTION_DAYS", "30")
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	db := database.GetDB()
	require.NoError(t, db.Create(&model.AuditLog{Action: "ROLE", Timestamp: now.AddDate(0, 0, -31)}).Error)
	require.NoError(t, db.Create(&model.AuditLog{Action: "UPDATE", Timestamp: now.AddDate(0, 0, -2)}).Error)

	j := NewAuditCleanupJob(s.Audit)
	j.now = func() time.Time { return now }
	j.Run()

	entries, err := s.Audit.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "UPDATE", entries[0].Action)
}

func TestSyncDepositionsJob(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	ds := &model.DataSet{
		UserId: 1,
		DSMetaData: model.DSMetaData{
			Title:           "Top sellers",
			Description:     "Steam top sellers",
			PublicationType: model.PublicationNone,
		},
	}
	require.NoError(t, database.GetDB().Create(ds).Error)

	dep, err := s.Zenodo.CreateDeposition(ctx, ds)
	require.NoError(t, err)
	published, err := s.Zenodo.PublishDeposition(ctx, dep.Id)
	require.NoError(t, err)
	require.NotEmpty(t, published.Doi)
	require.NoError(t, database.GetDB().Model(&model.DSMetaData{}).
		Where("id = ?", ds.DSMetaDataId).Update("deposition_id", string(dep.Id)).Error)

	pending, err := s.Datasets.GetPendingDepositions()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	NewSyncDepositionsJob(s.Datasets).Run()

	got, err := s.Datasets.GetById(ds.Id)
	require.NoError(t, err)
	assert.Equal(t, published.Doi, got.DSMetaData.DatasetDoi)

	pending, err = s.Datasets.GetPendingDepositions()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
