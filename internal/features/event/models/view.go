package models

import "time"

// Phase tells the renderer whether the view is a live snapshot or the final result.
type Phase string

const (
	PhaseLive  Phase = "live"
	PhaseFinal Phase = "final"
)

// OptionCount is a poll option with its current number of votes.
type OptionCount struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

// View is the data handed to the notification surface for rendering. It holds
// no formatting; turning it into a message is the sink's job.
type View struct {
	EventID          string        `json:"eventId"`
	ScopeID          string        `json:"scopeId"`
	SubjectRef       string        `json:"subjectRef"`
	Kind             Kind          `json:"kind"`
	Status           Status        `json:"status"`
	Phase            Phase         `json:"phase"`
	Title            string        `json:"title,omitempty"`
	Prize            string        `json:"prize,omitempty"`
	EndsAt           time.Time     `json:"endsAt"`
	WinnersWanted    int           `json:"winnersWanted,omitempty"`
	ParticipantCount int           `json:"participantCount"`
	TotalWeight      int           `json:"totalWeight,omitempty"`
	Winners          []string      `json:"winners,omitempty"`
	Options          []OptionCount `json:"options,omitempty"`
	Ranking          []string      `json:"ranking,omitempty"`
}

// NewView snapshots an event for rendering.
func NewView(e *Event) View {
	v := View{
		EventID:          e.ID,
		ScopeID:          e.ScopeID,
		SubjectRef:       e.SubjectRef,
		Kind:             e.Kind,
		Status:           e.Status,
		Phase:            PhaseLive,
		Title:            e.Title,
		Prize:            e.Prize,
		EndsAt:           e.EndsAt,
		WinnersWanted:    e.WinnersWanted,
		ParticipantCount: e.ParticipantCount(),
	}
	if e.IsClosed() {
		v.Phase = PhaseFinal
	}

	switch e.Kind {
	case KindGiveaway:
		v.TotalWeight = e.TotalWeight()
		if e.IsClosed() {
			v.Winners = append([]string{}, e.ResultWinners...)
		}
	case KindPoll:
		tally, ranking := e.Tally, e.Ranking
		if !e.IsClosed() {
			tally, ranking = e.CountVotes()
		}
		v.Options = make([]OptionCount, 0, len(e.Options))
		for _, o := range e.Options {
			v.Options = append(v.Options, OptionCount{ID: o.ID, Label: o.Label, Votes: tally[o.ID]})
		}
		v.Ranking = append([]string{}, ranking...)
	}
	return v
}
