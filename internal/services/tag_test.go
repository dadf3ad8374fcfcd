package services

import (
	"context"
	"testing"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagLifecycle(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "root", models.RoleAdmin)
	ctx := context.Background()

	tag, err := e.tags.Create(ctx, admin, "  Gadgets ", "things with batteries")
	require.NoError(t, err)
	assert.Equal(t, "gadgets", tag.Name)

	_, err = e.tags.Create(ctx, admin, "GADGETS", "")
	assert.True(t, utils.IsKind(err, utils.KindConflict))

	_, err = e.tags.Create(ctx, admin, " ", "")
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	p, err := e.posts.Create(ctx, admin, CreatePostInput{Content: "<p>x</p>", Tags: []string{"gadgets"}})
	require.NoError(t, err)

	require.NoError(t, e.tags.Delete(ctx, admin, tag.ID))
	err = e.tags.Delete(ctx, admin, tag.ID)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	detail, err := e.posts.Get(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, detail.Post.Tags)

	page, err := e.audit.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, AuditTagDelete, page.Entries[0].Action)
	assert.Equal(t, AuditTagCreate, page.Entries[1].Action)
}
