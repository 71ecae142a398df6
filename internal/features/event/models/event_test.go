package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func poll() *Event {
	return &Event{
		ID:      "poll-1",
		ScopeID: "guild",
		Kind:    KindPoll,
		Status:  StatusOpen,
		EndsAt:  now.Add(time.Hour),
		Options: []Option{{ID: "A", Label: "Apples"}, {ID: "B", Label: "Bananas"}, {ID: "C", Label: "Cherries"}},
		Participants: map[string]Participant{
			"u1": {Weight: 1, OptionID: "B"},
			"u2": {Weight: 1, OptionID: "C"},
			"u3": {Weight: 1, OptionID: "B"},
		},
	}
}

func TestStatusPredicates(t *testing.T) {
	e := &Event{Status: StatusOpen, EndsAt: now}
	assert.True(t, e.IsOpen())
	assert.True(t, e.IsExpired(now))
	assert.True(t, e.DueForClosure(now))
	assert.False(t, e.DueForClosure(now.Add(-time.Second)))

	e.Status = StatusPaused
	assert.True(t, e.IsPaused())
	assert.False(t, e.DueForClosure(now))

	e.Status = StatusClosed
	assert.True(t, e.IsClosed())
	assert.False(t, e.DueForClosure(now.Add(time.Hour)))
}

func TestKey(t *testing.T) {
	e := &Event{ID: "gaw-3", ScopeID: "123"}
	assert.Equal(t, Key("123:gaw-3"), e.Key())
	e.SubjectRef = "msg-9"
	assert.Equal(t, Key("123:msg-9"), e.Key())
	assert.Equal(t, "123", e.Key().Scope())
}

func TestCountVotes(t *testing.T) {
	tally, ranking := poll().CountVotes()
	assert.Equal(t, map[string]int{"A": 0, "B": 2, "C": 1}, tally)
	assert.Equal(t, []string{"B", "C", "A"}, ranking)
}

func TestCountVotesTiesKeepOptionOrder(t *testing.T) {
	e := poll()
	e.Participants = map[string]Participant{"u1": {OptionID: "C"}, "u2": {OptionID: "A"}}
	_, ranking := e.CountVotes()
	assert.Equal(t, []string{"A", "C", "B"}, ranking)
}

func TestCloneIsDeep(t *testing.T) {
	e := poll()
	e.Requirements = &Requirements{Roles: &RoleRequirement{IDs: []string{"r1"}}}
	e.ResultWinners = []string{"u1"}
	c := e.Clone()

	c.Participants["u9"] = Participant{Weight: 3}
	c.Options[0].Label = "changed"
	c.Requirements.Roles.IDs[0] = "r2"
	c.ResultWinners[0] = "u2"

	assert.False(t, e.HasParticipant("u9"))
	assert.Equal(t, "Apples", e.Options[0].Label)
	assert.Equal(t, "r1", e.Requirements.Roles.IDs[0])
	assert.Equal(t, "u1", e.ResultWinners[0])
}

func TestDurationJSON(t *testing.T) {
	var r Requirements
	require.NoError(t, json.Unmarshal([]byte(`{"minAccountAge":"7d","minActivity":5}`), &r))
	assert.Equal(t, 7*24*time.Hour, r.MinAccountAge.Std())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	var back Requirements
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)

	require.Error(t, json.Unmarshal([]byte(`{"minAccountAge":"soon"}`), &r))
}

func TestRequirementsIsEmpty(t *testing.T) {
	var nilReq *Requirements
	assert.True(t, nilReq.IsEmpty())
	assert.True(t, (&Requirements{Roles: &RoleRequirement{}}).IsEmpty())
	assert.False(t, (&Requirements{MinActivity: 1}).IsEmpty())
}

func TestNewViewPoll(t *testing.T) {
	v := NewView(poll())
	assert.Equal(t, PhaseLive, v.Phase)
	assert.Equal(t, 3, v.ParticipantCount)
	require.Len(t, v.Options, 3)
	assert.Equal(t, 2, v.Options[1].Votes)
	assert.Equal(t, []string{"B", "C", "A"}, v.Ranking)
}

func TestNewViewClosedGiveaway(t *testing.T) {
	e := &Event{
		ID: "gaw-1", Kind: KindGiveaway, Status: StatusClosed,
		Participants:  map[string]Participant{"u1": {Weight: 2}, "u2": {Weight: 1}},
		ResultWinners: []string{"u2"},
	}
	v := NewView(e)
	assert.Equal(t, PhaseFinal, v.Phase)
	assert.Equal(t, 3, v.TotalWeight)
	assert.Equal(t, []string{"u2"}, v.Winners)
}
