package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailseek/internal/ladder"
	"github.com/gotrs-io/mailseek/internal/models"
)

func TestViewURL(t *testing.T) {
	t.Run("search mode escapes the query into the fragment", func(t *testing.T) {
		url, err := ViewURL("0", models.SearchStrategy{
			Name:  ladder.NameExactSubjectOnly,
			Mode:  models.ModeSearch,
			Query: `subject:"Journal X: Alert"`,
		})
		require.NoError(t, err)
		assert.Equal(t,
			"https://mail.google.com/mail/u/0/#search/subject%3A%22Journal%20X%3A%20Alert%22",
			url)
	})

	t.Run("search mode without a query is an error", func(t *testing.T) {
		_, err := ViewURL("0", models.SearchStrategy{Name: "x", Mode: models.ModeSearch})
		assert.Error(t, err)
	})

	t.Run("search input mode starts at the inbox", func(t *testing.T) {
		url, err := ViewURL("1", models.SearchStrategy{
			Name:  ladder.NameInputSubjectStemOnly,
			Mode:  models.ModeSearchInput,
			Query: "subject:x",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://mail.google.com/mail/u/1/#inbox", url)
	})

	t.Run("browse folders", func(t *testing.T) {
		inbox, err := ViewURL("0", models.SearchStrategy{
			Name: ladder.NameBrowseInbox, Mode: models.ModeBrowse, Folder: ladder.FolderInbox,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox", inbox)

		all, err := ViewURL("0", models.SearchStrategy{
			Name: ladder.NameBrowseAllMail, Mode: models.ModeBrowse, Folder: ladder.FolderAllMail,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://mail.google.com/mail/u/0/#all", all)
	})
}

func TestIsInboxLike(t *testing.T) {
	assert.True(t, IsInboxLike("https://mail.google.com/mail/u/0/#inbox"))
	assert.False(t, IsInboxLike("https://mail.google.com/mail/u/0/#search/subject%3Ax"))
	assert.False(t, IsInboxLike("https://mail.google.com/mail/u/0/#all"))
}
