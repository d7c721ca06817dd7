package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
)

const (
	selMsgSender     = "span.gD"
	selMsgTimestamps = "span.g3"
	selMsgBody       = "div.a3s"
	selMsgBodyLinks  = "div.a3s a[href]"
	selAuxLinks      = "a[href]"

	maxMessageTimestamps = 12
	maxMessageLinks      = 500
	maxWebviewLinks      = 800

	webviewTimeout = 45 * time.Second
)

// collectTimestamps gathers every timestamp rendering visible on the open
// message: tooltip titles first, visible text second, deduplicated in
// order.
func (sc *Scanner) collectTimestamps() []string {
	count := sc.surface.Count(selMsgTimestamps)
	if count > maxMessageTimestamps {
		count = maxMessageTimestamps
	}
	seen := make(map[string]struct{})
	var stamps []string
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, dup := seen[value]; dup {
			return
		}
		seen[value] = struct{}{}
		stamps = append(stamps, value)
	}
	for i := 0; i < count; i++ {
		node := fmt.Sprintf("%s >> nth=%d", selMsgTimestamps, i)
		add(sc.surface.Attr(node, "title", quickTimeout))
		add(sc.surface.Text(node, quickTimeout))
	}
	return stamps
}

// expandWebview opens the clipped-message full view in an auxiliary page
// and harvests its links and body text. One attempt per candidate;
// failures degrade to the base extraction.
func (sc *Scanner) expandWebview(webviewURL string, baseLinks []models.LinkDetail, baseBody string) ([]models.LinkDetail, string, string, *models.WebviewExpansion) {
	expansion := &models.WebviewExpansion{
		Attempted:     true,
		WebviewURL:    webviewURL,
		BaseLinkCount: len(baseLinks),
	}

	aux, err := sc.surface.OpenAux(webviewURL, webviewTimeout)
	if err != nil {
		expansion.Error = fmt.Sprintf("webview_open_failed: %v", err)
		return baseLinks, baseBody, "", expansion
	}
	defer aux.Close()

	finalURL := aux.CurrentURL()
	expansion.FinalURL = finalURL
	if strings.Contains(finalURL, "accounts.google.com") {
		expansion.Error = "redirected_to_google_signin"
		return baseLinks, baseBody, "", expansion
	}
	if err := aux.WaitAttached("body", 5*time.Second); err != nil {
		expansion.Error = fmt.Sprintf("webview_body_unavailable: %v", err)
		return baseLinks, baseBody, "", expansion
	}

	webviewLinks := aux.Links(selAuxLinks, maxWebviewLinks)
	expansion.WebviewLinkCount = len(webviewLinks)
	merged := match.MergeLinkDetails(baseLinks, webviewLinks)
	expansion.MergedLinkCount = len(merged)
	expansion.AddedLinkCount = len(merged) - len(match.MergeLinkDetails(baseLinks))
	expansion.Expanded = true

	body := baseBody
	source := ""
	webviewBody := aux.Text("body", 5*time.Second)
	if len(webviewBody) > len(baseBody) {
		body = webviewBody
		source = "gmail_webview"
		expansion.BodyTextUsed = true
		expansion.BodyTextLength = len(webviewBody)
	}
	return merged, body, source, expansion
}

// extractCandidate reads the currently open message view into a candidate
// record and stamps the match flags against target.
func (sc *Scanner) extractCandidate(strategyName string, target models.MatchTarget, rowSubject, rowSender, rowTimeHint string) *models.Candidate {
	subject := sc.surface.Text(selMsgHeader, 8*time.Second)
	if subject == "" {
		subject = rowSubject
	}
	senderEmail := sc.surface.Attr(selMsgSender, "email", quickTimeout)
	senderName := sc.surface.Attr(selMsgSender, "name", quickTimeout)
	if senderName == "" {
		senderName = sc.surface.Text(selMsgSender, quickTimeout)
	}
	if senderName == "" {
		senderName = rowSender
	}

	timestamps := sc.collectTimestamps()
	if len(timestamps) == 0 && rowTimeHint != "" {
		timestamps = append(timestamps, rowTimeHint)
	}

	var minuteMatch, dateMatch bool
	var local []string
	for _, stamp := range timestamps {
		parsed, ok := match.ParseUITimestamp(stamp, target.Zone)
		if !ok {
			continue
		}
		local = append(local, parsed.In(target.Zone).Format(time.RFC3339))
		if match.SameMinute(parsed, target.Instant, target.Zone) {
			minuteMatch = true
		}
		if match.SameLocalDate(parsed, target.Date, target.Zone) {
			dateMatch = true
		}
	}

	allLinks := sc.surface.Links(selMsgBodyLinks, maxMessageLinks)
	var body, bodySource string
	if sc.policy.IncludeBody {
		body = sc.surface.Text(selMsgBody, 5*time.Second)
		if body != "" {
			bodySource = "gmail_thread"
		}
	}

	var expansion *models.WebviewExpansion
	for _, link := range allLinks {
		if !match.IsWebviewLink(link.Href) {
			continue
		}
		var webviewSource string
		allLinks, body, webviewSource, expansion = sc.expandWebview(match.NormalizeHref(link.Href), allLinks, body)
		if webviewSource != "" {
			bodySource = webviewSource
		}
		break
	}

	safe, blocked := match.PartitionLinks(allLinks)
	candidate := &models.Candidate{
		Strategy:           strategyName,
		Subject:            match.NormalizeSubject(subject),
		SenderName:         senderName,
		SenderEmail:        senderEmail,
		SenderMatch:        match.SenderMatches(target.Sender, senderName, senderEmail),
		RowTimeHint:        rowTimeHint,
		Timestamps:         timestamps,
		TimestampsLocal:    local,
		MinuteMatch:        minuteMatch,
		DateMatch:          dateMatch,
		URL:                sc.surface.CurrentURL(),
		LinkDetails:        safe,
		BlockedLinkDetails: blocked,
		AllLinkDetails:     match.MergeLinkDetails(allLinks),
		Webview:            expansion,
		TimeMatchMode:      target.TimeMatchMode(),
	}
	if sc.policy.IncludeBody {
		candidate.BodyText = body
		candidate.BodyTextSource = bodySource
	}
	for _, item := range candidate.LinkDetails {
		candidate.Links = append(candidate.Links, item.Href)
	}
	for _, item := range candidate.BlockedLinkDetails {
		candidate.BlockedLinks = append(candidate.BlockedLinks, item.Href)
	}
	for _, item := range candidate.AllLinkDetails {
		candidate.AllLinks = append(candidate.AllLinks, item.Href)
	}
	return candidate
}

// CandidateMatches reports whether a candidate satisfies the full target predicate:
// subject, time at the requested granularity, and the sender filter.
func CandidateMatches(c *models.Candidate, target models.MatchTarget) bool {
	if c == nil {
		return false
	}
	if !match.SubjectMatches(c.Subject, target.Subject) {
		return false
	}
	if target.DateOnly() {
		if !c.DateMatch {
			return false
		}
	} else if !c.MinuteMatch {
		return false
	}
	return c.SenderMatch
}
