// Package property provides the string-keyed property-change notification
// mechanism that watchers subscribe to. A Target accepts registrations keyed
// by (property, subscriber, token) and delivers a Change to each registered
// Subscriber synchronously when the property is mutated.
package property

import "github.com/google/uuid"

// Token distinguishes one subscriber's registrations from any other
// subscriber sharing the same notification channel. Tokens are compared by
// value.
type Token string

// NewToken returns a unique UUIDv7 token.
func NewToken() Token {
	return Token(uuid.Must(uuid.NewV7()).String())
}

// Options selects which values a subscriber wants reported in each Change.
type Options struct {
	ReportOld bool `json:"report_old" yaml:"report_old"`
	ReportNew bool `json:"report_new" yaml:"report_new"`
}

// DefaultOptions reports both old and new values.
func DefaultOptions() Options {
	return Options{ReportOld: true, ReportNew: true}
}

// Kind describes the mutation that produced a Change.
type Kind int

const (
	KindSetting     Kind = iota + 1 // whole value replaced via Set
	KindInsertion                   // elements appended to a collection
	KindRemoval                     // elements removed from a collection
	KindReplacement                 // elements replaced in place
)

func (k Kind) String() string {
	switch k {
	case KindSetting:
		return "setting"
	case KindInsertion:
		return "insertion"
	case KindRemoval:
		return "removal"
	case KindReplacement:
		return "replacement"
	default:
		return "unknown"
	}
}

// Change is the payload delivered with a notification.
//
// Old and New are nil when the value does not apply to the mutation (an
// insertion has no old value, a removal has no new value) or when the
// subscriber did not request it. For collection mutations Old and New hold
// only the affected elements and Indexes holds their positions.
type Change struct {
	Kind    Kind
	Old     any
	New     any
	Indexes []int
}

// Subscriber receives change notifications from a Target.
type Subscriber interface {
	OnNotify(key string, source any, change Change, token Token)
}

// Target is an object whose properties can be observed by key.
//
// Subscribe must not deliver the current value of the property. Subscribing
// an already registered (key, subscriber, token) triple and unsubscribing an
// unregistered one are both no-ops.
type Target interface {
	Subscribe(key string, sub Subscriber, opts Options, token Token)
	Unsubscribe(key string, sub Subscriber, token Token)
}
