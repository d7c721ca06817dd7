// Package ladder plans the ordered sequence of search strategies for a
// resolution run. The ladder is deterministic: identical targets and
// windows always produce an identical, identically-ordered plan, which is
// what makes attempts reproducible and checkpointable.
package ladder

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
)

// Strategy names, in precision-to-recall order.
const (
	NameStrictExactSubject    = "search_strict_exact_subject"
	NameExactSubjectOnly      = "search_exact_subject_only"
	NameSubjectStemOnly       = "search_subject_stem_only"
	NameInputSubjectStemOnly  = "search_input_subject_stem_only"
	NameSubjectStemWindow     = "search_subject_stem_window"
	NameSubjectWindowNoSender = "search_subject_window_no_sender"
	NameSenderBroadWindow     = "search_sender_broad_window"
	NameBrowseInbox           = "browse_inbox"
	NameBrowseAllMail         = "browse_all_mail"
)

// Folder identifiers for browse strategies.
const (
	FolderInbox   = "inbox"
	FolderAllMail = "all"
)

func escapePhrase(value string) string {
	return strings.ReplaceAll(value, `"`, `\"`)
}

// BuildQuery assembles a mailbox search query from the given constraints.
// The before: bound is exclusive, so the window extends one extra day past
// the target's local date.
func BuildQuery(subject string, target time.Time, loc *time.Location, sender string, windowDays int) string {
	local := target.In(loc)
	window := windowDays
	if window < 0 {
		window = 0
	}
	start := local.AddDate(0, 0, -window)
	before := local.AddDate(0, 0, window+1)

	var parts []string
	if subject != "" {
		parts = append(parts, fmt.Sprintf(`subject:"%s"`, escapePhrase(subject)))
	}
	parts = append(parts, "after:"+start.Format("2006/01/02"))
	parts = append(parts, "before:"+before.Format("2006/01/02"))
	if token := match.SenderQueryToken(sender); token != "" {
		parts = append(parts, "from:"+token)
	}
	return strings.Join(parts, " ")
}

// Build produces the strategy ladder for a target: strict
// subject+time+sender first, progressively relaxed constraints after, and
// two unconstrained browse strategies as the last resort.
func Build(target models.MatchTarget, windowDays int) []models.SearchStrategy {
	safeWindow := windowDays
	if safeWindow < 1 {
		safeWindow = 1
	}
	senderWindow := safeWindow
	if senderWindow < 2 {
		senderWindow = 2
	}
	stem := match.SubjectStem(target.Subject)

	strictQuery := BuildQuery(target.Subject, target.Instant, target.Zone, target.Sender, 0)
	strategies := []models.SearchStrategy{
		{Name: NameStrictExactSubject, Mode: models.ModeSearch, Query: strictQuery},
		{
			Name:  NameExactSubjectOnly,
			Mode:  models.ModeSearch,
			Query: fmt.Sprintf(`subject:"%s"`, escapePhrase(target.Subject)),
		},
	}

	if stem != "" && stem != target.Subject {
		stemQuery := fmt.Sprintf(`subject:"%s"`, escapePhrase(stem))
		strategies = append(strategies,
			models.SearchStrategy{Name: NameSubjectStemOnly, Mode: models.ModeSearch, Query: stemQuery},
			models.SearchStrategy{Name: NameInputSubjectStemOnly, Mode: models.ModeSearchInput, Query: stemQuery},
			models.SearchStrategy{
				Name:  NameSubjectStemWindow,
				Mode:  models.ModeSearch,
				Query: BuildQuery(stem, target.Instant, target.Zone, target.Sender, safeWindow),
			},
		)
	}

	relaxed := BuildQuery(target.Subject, target.Instant, target.Zone, "", safeWindow)
	if relaxed != strictQuery {
		strategies = append(strategies, models.SearchStrategy{
			Name:  NameSubjectWindowNoSender,
			Mode:  models.ModeSearch,
			Query: relaxed,
		})
	}

	if match.SenderQueryToken(target.Sender) != "" {
		broad := BuildQuery("", target.Instant, target.Zone, target.Sender, senderWindow)
		if hint := strings.TrimSpace(strings.SplitN(target.Subject, ":", 2)[0]); hint != "" {
			broad = fmt.Sprintf(`"%s" %s`, hint, broad)
		}
		strategies = append(strategies, models.SearchStrategy{
			Name:  NameSenderBroadWindow,
			Mode:  models.ModeSearch,
			Query: broad,
		})
	}

	strategies = append(strategies,
		models.SearchStrategy{Name: NameBrowseInbox, Mode: models.ModeBrowse, Folder: FolderInbox},
		models.SearchStrategy{Name: NameBrowseAllMail, Mode: models.ModeBrowse, Folder: FolderAllMail},
	)
	return strategies
}
