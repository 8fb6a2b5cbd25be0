package service

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/fakenodo"

	"github.com/stretchr/testify/require"
)

// newTestServices opens a fresh database and points uploads and the
// deposition client at throwaway locations.
func newTestServices(t *testing.T) *Services {
	t.Helper()
	return newTestServicesBehind(t, nil)
}

// newTestServicesBehind is newTestServices with wrap placed in front of the
// fakenodo handler.
func newTestServicesBehind(t *testing.T, wrap func(http.Handler) http.Handler) *Services {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HUB_UPLOADS_FOLDER", filepath.Join(dir, "uploads"))
	require.NoError(t, database.InitDB(filepath.Join(dir, "hub.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	var handler http.Handler = fakenodo.NewServer().Handler()
	if wrap != nil {
		handler = wrap(handler)
	}
	stub := httptest.NewServer(handler)
	t.Cleanup(stub.Close)

	return NewServicesWith(database.GetDB(), nil, ZenodoOptions{
		BaseURL:    stub.URL + "/deposit/depositions",
		RetryTotal: 2,
		Backoff:    time.Millisecond,
		RateWait:   time.Millisecond,
		Client:     stub.Client(),
	})
}

func createUser(t *testing.T, s *Services, email string, role model.Role) *model.User {
	t.Helper()
	u, err := s.Users.CreateUser(email, "secret", role, &model.UserProfile{Name: "Ada", Surname: "Lovelace"})
	require.NoError(t, err)
	return u
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
