package jobs

import (
	"fmt"
	"strings"
	"time"

	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/utils"
)

const notSpecified = "Not specified"

// Summary renders a single listing. Missing or malformed fields fall back to
// defaults instead of dropping the listing.
func Summary(r record.Record) string {
	v := r.View()

	var b strings.Builder
	fmt.Fprintf(&b, "🏢 %s - %s\n", orDefault(v.First(record.KindCompany), "Unknown"), orDefault(v.First(record.KindTitle), "Untitled"))
	fmt.Fprintf(&b, "📍 Location: %s\n", orDefault(v.First(record.KindLocation), "Remote"))
	fmt.Fprintf(&b, "💼 Type: %s\n", joinOr(v.Values(record.KindEmploymentType)))
	fmt.Fprintf(&b, "🛠️  Skills: %s\n", joinOr(v.Values(record.KindSkill)))
	if s, ok := v.Salary(); ok {
		fmt.Fprintf(&b, "💰 Salary: %s\n", FormatSalary(s))
	}
	fmt.Fprintf(&b, "🆔 Job ID: %s\n", r.ID())
	fmt.Fprintf(&b, "📅 Posted: %s", postedAt(r))
	return b.String()
}

// Details is the summary followed by the full listing body.
func Details(r record.Record) string {
	return Summary(r) + "\n\n📄 Full Job Details:\n" + r.Content()
}

func FormatSalary(s record.Salary) string {
	return fmt.Sprintf("$%s - $%s %s per %s", s.Min, s.Max, s.Currency, s.Period)
}

func postedAt(r record.Record) string {
	return time.Unix(int64(r.CreatedAt()), 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func joinOr(values []string) string {
	if len(values) == 0 {
		return notSpecified
	}
	return strings.Join(values, ", ")
}

func numbered(b *strings.Builder, records []record.Record) {
	for i, r := range records {
		fmt.Fprintf(b, "%d. %s\n\n", i+1, Summary(r))
	}
}

func topItems(items []utils.ValueCount) string {
	if len(items) == 0 {
		return "  (none)"
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("  • %s: %d", it.Value, it.Count))
	}
	return strings.Join(lines, "\n")
}

func staleMarker(fromCache, fresh bool) string {
	if fromCache && !fresh {
		return " (cached)"
	}
	return ""
}

// Degraded is the reply used whenever relays could not answer in time. The
// wording depends on whether the relays were healthy when the request began.
func Degraded(healthy bool) string {
	if healthy {
		return "⏳ Search in progress...\n" +
			"Relays are responding but queries are slow.\n" +
			"Please try again shortly."
	}
	return "🔄 Starting relay connection...\n\n" +
		"The Nostr relays are initializing or unreachable.\n" +
		"Please try again in a moment.\n\n" +
		"💡 Tip: Results will be cached once available."
}
