package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" go ", "", "web", "go", "  ", "db"})
	assert.Equal(t, []string{"go", "web", "db"}, got)
}

func TestNormalizeTags_TruncatesLongTags(t *testing.T) {
	long := strings.Repeat("x", MaxTagLength+10)
	got := NormalizeTags([]string{long})
	assert.Len(t, got, 1)
	assert.Len(t, got[0], MaxTagLength)
}

func TestNewTagLinks(t *testing.T) {
	links := NewTagLinks(7, []string{"a", "b", "a"})
	assert.Equal(t, []PostTag{{PostID: 7, Tag: "a"}, {PostID: 7, Tag: "b"}}, links)
}

func TestPostAfterFind(t *testing.T) {
	p := &Post{TagLinks: []PostTag{{Tag: "x"}, {Tag: "y"}}}
	assert.NoError(t, p.AfterFind(nil))
	assert.Equal(t, []string{"x", "y"}, p.Tags)

	empty := &Post{}
	assert.NoError(t, empty.AfterFind(nil))
	assert.NotNil(t, empty.Tags)
	assert.Empty(t, empty.Tags)
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, PostPublished.Valid())
	assert.False(t, PostStatus("DTAFT").Valid())
	assert.True(t, CommentPending.Valid())
	assert.False(t, CommentStatus("").Valid())
	assert.True(t, UserBlocked.Valid())
	assert.False(t, UserStatus("DELETED").Valid())
}
