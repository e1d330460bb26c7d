package record

import (
	"github.com/nbd-wtf/go-nostr"
)

// JobListingKind is the nostr event kind carrying job listings.
const JobListingKind = 9993

// Kind is one of the attribute kinds the filter and aggregation code understands.
type Kind int

const (
	KindCompany Kind = iota
	KindSkill
	KindEmploymentType
	KindSalary
	KindIdentifier
	KindTitle
	KindLocation
)

// Tag names as they appear on job listing events
const (
	TagCompany        = "company"
	TagSkill          = "skill"
	TagEmploymentType = "employment-type"
	TagSalary         = "salary"
	TagJobID          = "job-id"
	TagJobIDIndexed   = "j"
	TagTitle          = "title"
	TagLocation       = "location"
)

var tagKinds = map[string]Kind{
	TagCompany:        KindCompany,
	TagSkill:          KindSkill,
	TagEmploymentType: KindEmploymentType,
	TagSalary:         KindSalary,
	TagJobID:          KindIdentifier,
	TagJobIDIndexed:   KindIdentifier,
	TagTitle:          KindTitle,
	TagLocation:       KindLocation,
}

func (k Kind) String() string {
	switch k {
	case KindCompany:
		return TagCompany
	case KindSkill:
		return TagSkill
	case KindEmploymentType:
		return TagEmploymentType
	case KindSalary:
		return TagSalary
	case KindIdentifier:
		return TagJobID
	case KindTitle:
		return TagTitle
	case KindLocation:
		return TagLocation
	default:
		return "unknown"
	}
}

// Salary is the decoded ["salary", min, max, currency, period] tag.
type Salary struct {
	Min      string
	Max      string
	Currency string
	Period   string
}

// View is the structured form of a listing's tags, resolved once per record.
type View struct {
	values map[Kind][]string
	salary *Salary
}

// Values returns every value tagged with kind k, in tag order.
func (v View) Values(k Kind) []string {
	return v.values[k]
}

// First returns the first value for kind k, or "" when the record has none.
func (v View) First(k Kind) string {
	if vals := v.values[k]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Salary returns the first well-formed salary tag, if any.
func (v View) Salary() (Salary, bool) {
	if v.salary == nil {
		return Salary{}, false
	}
	return *v.salary, true
}

// Resolve scans the raw tag list. Tags that are too short for their kind are
// skipped; they never invalidate the rest of the record.
func Resolve(tags nostr.Tags) View {
	v := View{values: make(map[Kind][]string)}
	for _, tag := range tags {
		if len(tag) < 2 {
			continue
		}
		kind, ok := tagKinds[tag[0]]
		if !ok {
			continue
		}
		if kind == KindSalary {
			if v.salary == nil && len(tag) >= 5 {
				v.salary = &Salary{Min: tag[1], Max: tag[2], Currency: tag[3], Period: tag[4]}
			}
			continue
		}
		v.values[kind] = append(v.values[kind], tag[1])
	}
	return v
}

// Record is a single relay result together with its resolved attribute view.
type Record struct {
	Event *nostr.Event
	view  View
}

// New wraps an event. A nil event yields an empty record.
func New(ev *nostr.Event) Record {
	if ev == nil {
		return Record{view: View{values: map[Kind][]string{}}}
	}
	return Record{Event: ev, view: Resolve(ev.Tags)}
}

// FromEvents wraps a batch of events, dropping nils.
func FromEvents(events []*nostr.Event) []Record {
	out := make([]Record, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		out = append(out, New(ev))
	}
	return out
}

func (r Record) View() View { return r.view }

// ID returns the listing's job identifier, falling back to the event id.
func (r Record) ID() string {
	if id := r.view.First(KindIdentifier); id != "" {
		return id
	}
	if r.Event != nil {
		return r.Event.ID
	}
	return ""
}

// Content returns the free-form listing body.
func (r Record) Content() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.Content
}

// CreatedAt returns the event creation timestamp.
func (r Record) CreatedAt() nostr.Timestamp {
	if r.Event == nil {
		return 0
	}
	return r.Event.CreatedAt
}
