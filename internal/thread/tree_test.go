package thread

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"reviewhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func post(id uint, parent uint, minute int) models.Post {
	p := models.Post{ID: id, Content: fmt.Sprintf("post %d", id), CreatedAt: base.Add(time.Duration(minute) * time.Minute)}
	if parent != 0 {
		p.ParentID = &parent
	}
	return p
}

func TestBuildTreeEmpty(t *testing.T) {
	roots := BuildTree(nil)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
}

func TestBuildTreeOrdering(t *testing.T) {
	posts := []models.Post{
		post(1, 0, 0),
		post(2, 0, 10),
		post(3, 1, 5),
		post(4, 1, 2),
		post(5, 4, 3),
	}

	roots := BuildTree(posts)
	require.Len(t, roots, 2)

	// roots newest first
	assert.Equal(t, uint(2), roots[0].Comment.ID)
	assert.Equal(t, uint(1), roots[1].Comment.ID)

	// replies oldest first
	replies := roots[1].Replies
	require.Len(t, replies, 2)
	assert.Equal(t, uint(4), replies[0].Comment.ID)
	assert.Equal(t, uint(3), replies[1].Comment.ID)

	assert.Equal(t, 0, roots[1].Depth)
	assert.Equal(t, 1, replies[0].Depth)
	assert.Equal(t, 2, replies[0].Replies[0].Depth)

	assert.Equal(t, []uint{2, 1, 4, 5, 3}, IDs(roots))
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	posts := []models.Post{post(10, 99, 0), post(11, 10, 1)}

	roots := BuildTree(posts)
	require.Len(t, roots, 1)
	assert.Equal(t, uint(10), roots[0].Comment.ID)
	assert.Equal(t, 0, roots[0].Depth)
	assert.Equal(t, 1, roots[0].Replies[0].Depth)
}

func TestBuildTreeSelfParentIsRoot(t *testing.T) {
	roots := BuildTree([]models.Post{post(7, 7, 0)})
	require.Len(t, roots, 1)
	assert.Equal(t, uint(7), roots[0].Comment.ID)
}

func TestBuildTreeBreaksCycles(t *testing.T) {
	// 1 -> 2 -> 3 -> 1, plus 4 hanging off 3
	posts := []models.Post{post(2, 1, 1), post(1, 3, 0), post(3, 2, 2), post(4, 3, 3)}

	roots := BuildTree(posts)
	require.Len(t, roots, 1)
	// first input member of the cycle is promoted
	assert.Equal(t, uint(2), roots[0].Comment.ID)
	assert.Equal(t, 4, Count(roots))
	assert.ElementsMatch(t, []uint{1, 2, 3, 4}, IDs(roots))
}

func TestBuildTreeTiesBrokenByID(t *testing.T) {
	posts := []models.Post{post(3, 0, 0), post(1, 0, 0), post(2, 0, 0)}
	assert.Equal(t, []uint{3, 2, 1}, IDs(BuildTree(posts)))
}

func TestBuildTreeKeepsEveryPost(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := 1 + r.Intn(60)
		posts := make([]models.Post, n)
		for i := range posts {
			// parents may be missing, self, forward or backward references
			posts[i] = post(uint(i+1), uint(r.Intn(n+5)), r.Intn(30))
		}

		roots := BuildTree(posts)
		ids := IDs(roots)
		require.Len(t, ids, n, "round %d", round)

		seen := make(map[uint]bool, n)
		for _, id := range ids {
			require.False(t, seen[id], "duplicate %d in round %d", id, round)
			seen[id] = true
		}

		Walk(roots, func(node *Node) bool {
			for i, child := range node.Replies {
				assert.Equal(t, node.Depth+1, child.Depth)
				if i > 0 {
					assert.LessOrEqual(t, oldestFirst(node.Replies[i-1], child), 0)
				}
			}
			return true
		})
	}
}

func TestBuildTreeDoesNotClampDepth(t *testing.T) {
	posts := []models.Post{post(1, 0, 0)}
	for i := uint(2); i <= 10; i++ {
		posts = append(posts, post(i, i-1, int(i)))
	}

	roots := BuildTree(posts)
	deepest := Find(roots, 10)
	require.NotNil(t, deepest)
	assert.Equal(t, 9, deepest.Depth)
	assert.Equal(t, MaxVisualDepth, VisualDepth(deepest.Depth))
	assert.Equal(t, 3, VisualDepth(3))
	assert.Equal(t, 0, VisualDepth(-1))
}

func TestFindAndDescendants(t *testing.T) {
	posts := []models.Post{post(1, 0, 0), post(2, 1, 1), post(3, 2, 2), post(4, 1, 3)}
	roots := BuildTree(posts)

	assert.Equal(t, 3, Descendants(Find(roots, 1)))
	assert.Equal(t, 1, Descendants(Find(roots, 2)))
	assert.Nil(t, Find(roots, 99))
	assert.Equal(t, 0, Descendants(nil))
}

func TestBuildTreeDiscussionScenario(t *testing.T) {
	const a, b, c, d, e = 1, 2, 3, 4, 5
	// created in order A, E, B, C, D; input shuffled
	posts := []models.Post{
		post(d, b, 4),
		post(a, 0, 0),
		post(c, a, 3),
		post(e, 0, 1),
		post(b, a, 2),
	}

	roots := BuildTree(posts)
	require.Len(t, roots, 2)
	assert.Equal(t, uint(e), roots[0].Comment.ID)
	assert.Equal(t, uint(a), roots[1].Comment.ID)
	assert.Empty(t, roots[0].Replies)

	replies := roots[1].Replies
	require.Len(t, replies, 2)
	assert.Equal(t, uint(b), replies[0].Comment.ID)
	assert.Equal(t, uint(c), replies[1].Comment.ID)
	require.Len(t, replies[0].Replies, 1)
	assert.Equal(t, uint(d), replies[0].Replies[0].Comment.ID)

	assert.Equal(t, 5, Count(roots))
}
