package ladder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailseek/internal/models"
)

func testTarget(t *testing.T, subject, sender string) models.MatchTarget {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	instant := time.Date(2026, 1, 19, 17, 18, 0, 0, loc)
	return models.MatchTarget{
		Subject:     subject,
		Sender:      sender,
		Instant:     instant,
		Date:        time.Date(2026, 1, 19, 0, 0, 0, 0, loc),
		Zone:        loc,
		Granularity: models.GranularityMinute,
	}
}

func TestBuildQuery(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	target := time.Date(2026, 1, 19, 17, 18, 0, 0, loc)

	t.Run("zero window brackets one day", func(t *testing.T) {
		query := BuildQuery("Journal X: Alert", target, loc, "", 0)
		assert.Equal(t, `subject:"Journal X: Alert" after:2026/01/19 before:2026/01/20`, query)
	})

	t.Run("window widens both bounds", func(t *testing.T) {
		query := BuildQuery("Journal X: Alert", target, loc, "", 1)
		assert.Contains(t, query, "after:2026/01/18")
		assert.Contains(t, query, "before:2026/01/21")
	})

	t.Run("sender adds a from clause", func(t *testing.T) {
		query := BuildQuery("S", target, loc, `"Journal Alerts" <alerts@example.com>`, 0)
		assert.Contains(t, query, "from:alerts@example.com")
	})

	t.Run("embedded quotes are escaped", func(t *testing.T) {
		query := BuildQuery(`He said "go"`, target, loc, "", 0)
		assert.Contains(t, query, `subject:"He said \"go\""`)
	})
}

func TestBuild(t *testing.T) {
	t.Run("deterministic for identical inputs", func(t *testing.T) {
		target := testTarget(t, "Journal X: Alert 19 January", "alerts@example.com")
		first := Build(target, 1)
		second := Build(target, 1)
		assert.Equal(t, first, second)
	})

	t.Run("strict strategy leads, browse strategies close", func(t *testing.T) {
		target := testTarget(t, "Journal X: Alert 19 January", "alerts@example.com")
		plan := Build(target, 1)
		require.GreaterOrEqual(t, len(plan), 4)
		assert.Equal(t, NameStrictExactSubject, plan[0].Name)
		assert.Equal(t, NameBrowseInbox, plan[len(plan)-2].Name)
		assert.Equal(t, NameBrowseAllMail, plan[len(plan)-1].Name)
		assert.Equal(t, FolderInbox, plan[len(plan)-2].Folder)
		assert.Equal(t, FolderAllMail, plan[len(plan)-1].Folder)
	})

	t.Run("alert subject contributes stem rungs", func(t *testing.T) {
		target := testTarget(t, "Journal X: Alert 19 January", "")
		plan := Build(target, 1)
		names := make(map[string]models.SearchStrategy, len(plan))
		for _, s := range plan {
			names[s.Name] = s
		}
		require.Contains(t, names, NameSubjectStemOnly)
		require.Contains(t, names, NameInputSubjectStemOnly)
		require.Contains(t, names, NameSubjectStemWindow)
		assert.Equal(t, models.ModeSearchInput, names[NameInputSubjectStemOnly].Mode)
		assert.Contains(t, names[NameSubjectStemOnly].Query, `subject:"Journal X: Alert"`)
	})

	t.Run("plain subject omits stem rungs", func(t *testing.T) {
		plan := Build(testTarget(t, "Weekly digest", ""), 1)
		for _, s := range plan {
			assert.NotEqual(t, NameSubjectStemOnly, s.Name)
			assert.NotEqual(t, NameInputSubjectStemOnly, s.Name)
		}
	})

	t.Run("sender filter contributes a broad rung", func(t *testing.T) {
		plan := Build(testTarget(t, "Journal X: Alert 19 January", "alerts@example.com"), 1)
		var broad *models.SearchStrategy
		for i := range plan {
			if plan[i].Name == NameSenderBroadWindow {
				broad = &plan[i]
			}
		}
		require.NotNil(t, broad)
		assert.Contains(t, broad.Query, "from:alerts@example.com")
		assert.Contains(t, broad.Query, `"Journal X"`)
	})

	t.Run("no sender means no broad rung", func(t *testing.T) {
		plan := Build(testTarget(t, "Journal X: Alert 19 January", ""), 1)
		for _, s := range plan {
			assert.NotEqual(t, NameSenderBroadWindow, s.Name)
		}
	})
}
