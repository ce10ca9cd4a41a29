// Package route maps mail subjects to task-service projects.
//
// Keywords are regular expressions matched case-insensitively anywhere in
// the subject, so "INVOICE" matches "Re: invoice #1" and "urgent|asap"
// matches either word. A keyword that does not compile as an RE2 pattern
// is matched as a literal string instead.
package route

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/nhle/mailtask/internal/model"
)

type rule struct {
	keyword   string
	projectID string
	pattern   *regexp.Regexp
}

// Router holds the compiled, ordered keyword table.
type Router struct {
	rules []rule
}

// New compiles mapping. Rules with an empty keyword are dropped because
// they would match every subject.
func New(mapping model.ProjectMapping, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{rules: make([]rule, 0, len(mapping))}
	for _, m := range mapping {
		if m.Keyword == "" {
			logger.Warn("ignoring project rule with empty keyword",
				"project_id", m.ProjectID)
			continue
		}

		pattern, err := regexp.Compile("(?i)" + m.Keyword)
		if err != nil {
			logger.Warn("keyword is not a valid pattern, matching it literally",
				"keyword", m.Keyword, "error", err)
			pattern = regexp.MustCompile("(?i)" + regexp.QuoteMeta(m.Keyword))
		}

		r.rules = append(r.rules, rule{
			keyword:   m.Keyword,
			projectID: m.ProjectID,
			pattern:   pattern,
		})
	}

	return r
}

// Len returns the number of usable rules.
func (r *Router) Len() int {
	return len(r.rules)
}

// Route returns the project id and the keyword of the first rule whose
// pattern occurs in subject. ok is false when no rule matches.
func (r *Router) Route(subject string) (projectID, keyword string, ok bool) {
	for _, rl := range r.rules {
		if rl.pattern.MatchString(subject) {
			return rl.projectID, rl.keyword, true
		}
	}
	return "", "", false
}

// Title returns subject with the first occurrence of keyword's match
// removed, so the routing trigger does not show up in the task title.
func (r *Router) Title(subject, keyword string) string {
	for _, rl := range r.rules {
		if rl.keyword == keyword {
			return stripFirst(subject, rl.pattern)
		}
	}
	return strings.TrimSpace(subject)
}

// stripFirst removes the first match of pattern. Whitespace around the cut
// collapses to one space; a cut inside a word joins the halves directly.
// A subject that is nothing but the match is returned unchanged so the
// title is never empty.
func stripFirst(subject string, pattern *regexp.Regexp) string {
	loc := pattern.FindStringIndex(subject)
	if loc == nil {
		return strings.TrimSpace(subject)
	}

	left := strings.TrimRight(subject[:loc[0]], " \t")
	right := strings.TrimLeft(subject[loc[1]:], " \t")
	trimmed := len(left) < loc[0] || len(right) < len(subject)-loc[1]

	sep := ""
	if trimmed && left != "" && right != "" {
		sep = " "
	}

	title := strings.TrimSpace(left + sep + right)
	if title == "" {
		return strings.TrimSpace(subject)
	}
	return title
}
