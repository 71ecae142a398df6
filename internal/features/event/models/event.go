package models

import (
	"sort"
	"strings"
	"time"
)

// Kind distinguishes giveaways from polls.
type Kind string

const (
	KindGiveaway Kind = "Giveaway"
	KindPoll     Kind = "Poll"
)

// IDPrefix is the namespace prefix of ids generated for the kind.
func (k Kind) IDPrefix() string {
	if k == KindPoll {
		return "poll"
	}
	return "gaw"
}

// Status is the lifecycle state of an event. Giveaways (running, paused,
// ended) and polls (open, closed) share the same three states.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusPaused Status = "Paused"
	StatusClosed Status = "Closed"
)

// ClosedByScheduler is recorded in Event.ClosedBy for automatic closures.
const ClosedByScheduler = "scheduler"

// Key addresses an event inside a store: "<scopeId>:<subjectRef>".
type Key string

// NewKey builds the composite key of an event.
func NewKey(scopeID, ref string) Key {
	return Key(scopeID + ":" + ref)
}

// Scope returns the scope part of the key.
func (k Key) Scope() string {
	scope, _, _ := strings.Cut(string(k), ":")
	return scope
}

func (k Key) String() string { return string(k) }

// Participant is one entry (giveaway) or vote (poll).
type Participant struct {
	Weight   int       `json:"weight"`
	JoinedAt time.Time `json:"joinedAt"`
	OptionID string    `json:"optionId,omitempty"`
}

// Option is a poll choice.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Event is a time-boxed giveaway or poll.
type Event struct {
	ID         string `json:"id"`
	ScopeID    string `json:"scopeId"`
	SubjectRef string `json:"subjectRef,omitempty"`
	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`

	Title       string `json:"title,omitempty"`
	Prize       string `json:"prize,omitempty"`
	Description string `json:"description,omitempty"`
	HostID      string `json:"hostId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	EndsAt    time.Time `json:"endsAt"`

	WinnersWanted    int           `json:"winnersWanted,omitempty"`
	Requirements     *Requirements `json:"requirements,omitempty"`
	EntryWeightRules *WeightRules  `json:"entryWeightRules,omitempty"`

	Participants map[string]Participant `json:"participants"`
	Options      []Option               `json:"options,omitempty"`

	// Results. Written once, together with the transition to Closed.
	ResultWinners []string       `json:"resultWinners,omitempty"`
	Tally         map[string]int `json:"tally,omitempty"`
	Ranking       []string       `json:"ranking,omitempty"`
	ClosedAt      *time.Time     `json:"closedAt,omitempty"`
	ClosedBy      string         `json:"closedBy,omitempty"`

	LastMutatedAt time.Time `json:"lastMutatedAt"`
}

func (e *Event) IsOpen() bool   { return e.Status == StatusOpen }
func (e *Event) IsPaused() bool { return e.Status == StatusPaused }
func (e *Event) IsClosed() bool { return e.Status == StatusClosed }

// IsExpired reports whether the end time has been reached.
func (e *Event) IsExpired(now time.Time) bool {
	return !now.Before(e.EndsAt)
}

// DueForClosure reports whether the scheduler should close the event now.
func (e *Event) DueForClosure(now time.Time) bool {
	return e.IsOpen() && e.IsExpired(now)
}

// Key returns the store key of the event.
func (e *Event) Key() Key {
	ref := e.SubjectRef
	if ref == "" {
		ref = e.ID
	}
	return NewKey(e.ScopeID, ref)
}

func (e *Event) HasParticipant(id string) bool {
	_, ok := e.Participants[id]
	return ok
}

func (e *Event) ParticipantCount() int {
	return len(e.Participants)
}

func (e *Event) HasOption(id string) bool {
	for _, o := range e.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Weights returns the draw weight of every participant.
func (e *Event) Weights() map[string]int {
	weights := make(map[string]int, len(e.Participants))
	for id, p := range e.Participants {
		weights[id] = p.Weight
	}
	return weights
}

// TotalWeight sums the participant weights.
func (e *Event) TotalWeight() int {
	total := 0
	for _, p := range e.Participants {
		total += p.Weight
	}
	return total
}

// CountVotes tallies votes per option. Every declared option is present in the
// tally. The ranking orders option ids by votes descending, ties keep the
// declared option order.
func (e *Event) CountVotes() (map[string]int, []string) {
	tally := make(map[string]int, len(e.Options))
	for _, o := range e.Options {
		tally[o.ID] = 0
	}
	for _, p := range e.Participants {
		if _, ok := tally[p.OptionID]; ok {
			tally[p.OptionID]++
		}
	}

	ranking := make([]string, 0, len(e.Options))
	for _, o := range e.Options {
		ranking = append(ranking, o.ID)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return tally[ranking[i]] > tally[ranking[j]]
	})
	return tally, ranking
}

// Touch records a participant or status change.
func (e *Event) Touch(now time.Time) {
	e.LastMutatedAt = now
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Requirements = e.Requirements.Clone()
	c.EntryWeightRules = e.EntryWeightRules.Clone()
	c.Participants = make(map[string]Participant, len(e.Participants))
	for id, p := range e.Participants {
		c.Participants[id] = p
	}
	if e.Options != nil {
		c.Options = append([]Option(nil), e.Options...)
	}
	if e.ResultWinners != nil {
		c.ResultWinners = append([]string(nil), e.ResultWinners...)
	}
	if e.Tally != nil {
		c.Tally = make(map[string]int, len(e.Tally))
		for id, n := range e.Tally {
			c.Tally[id] = n
		}
	}
	if e.Ranking != nil {
		c.Ranking = append([]string(nil), e.Ranking...)
	}
	if e.ClosedAt != nil {
		at := *e.ClosedAt
		c.ClosedAt = &at
	}
	return &c
}
