package service

import (
	"strings"
	"testing"

	"github.com/gameshub/uvlhub/database/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentModeration(t *testing.T) {
	s := newTestServices(t)
	owner := createUser(t, s, "ada@example.com", model.RoleStandard)
	curator := createUser(t, s, "cu@example.com", model.RoleCurator)
	ds := stageDataset(t, s, owner, "Steam")

	c, err := s.Comments.Create(ds.Id, owner, "  nice data  ")
	require.NoError(t, err)
	assert.True(t, c.IsVisible)
	assert.Equal(t, "nice data", c.Content)

	_, err = s.Comments.Create(ds.Id, owner, "   ")
	assert.Error(t, err)
	_, err = s.Comments.Create(ds.Id, owner, strings.Repeat("x", maxCommentLength+1))
	assert.Error(t, err)
	_, err = s.Comments.Create(9999, owner, "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Comments.Create(ds.Id, nil, "hi")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.Comments.Hide(owner, c.Id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.Comments.Hide(nil, c.Id)
	assert.ErrorIs(t, err, ErrUnauthorized)

	hidden, err := s.Comments.Hide(curator, c.Id)
	require.NoError(t, err)
	assert.False(t, hidden.IsVisible)

	visible, err := s.Comments.List(ds.Id, false)
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := s.Comments.List(ds.Id, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].User)
	assert.Equal(t, owner.Email, all[0].User.Email)

	approved, err := s.Comments.Approve(curator, c.Id)
	require.NoError(t, err)
	assert.True(t, approved.IsVisible)

	datasetId, err := s.Comments.Delete(curator, c.Id)
	require.NoError(t, err)
	assert.Equal(t, ds.Id, datasetId)
	_, err = s.Comments.Get(c.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Comments.Approve(curator, c.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}
