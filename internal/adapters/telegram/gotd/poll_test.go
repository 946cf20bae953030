package gotd

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bridge/internal/bridge"
)

func pollDefinition() tg.Poll {
	return tg.Poll{
		ID:        555,
		Quiz:      true,
		Closed:    true,
		Question:  tg.TextWithEntities{Text: "2+2?"},
		CloseDate: 1700000000,
		Answers: []tg.PollAnswer{
			{Text: tg.TextWithEntities{Text: "3"}, Option: []byte{0}},
			{Text: tg.TextWithEntities{Text: "4"}, Option: []byte{1}},
		},
	}
}

func TestConvertPollWithResults(t *testing.T) {
	t.Parallel()

	res := tg.PollResults{}
	res.SetResults([]tg.PollAnswerVoters{
		{Option: []byte{0}, Voters: 2},
		{Option: []byte{1}, Voters: 7, Chosen: true, Correct: true},
	})
	res.SetTotalVoters(9)
	res.SetSolution("arithmetic")

	p := convertPoll(&tg.MessageMediaPoll{Poll: pollDefinition(), Results: res})
	require.NotNil(t, p)
	assert.Equal(t, "555", p.ID)
	assert.Equal(t, "2+2?", p.Question)
	assert.Equal(t, bridge.PollQuiz, p.Type)
	assert.True(t, p.IsClosed)
	assert.True(t, p.IsAnonymous)
	assert.Equal(t, "arithmetic", p.Explanation)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), p.CloseDate)

	require.NotNil(t, p.TotalVoterCount)
	assert.Equal(t, 9, *p.TotalVoterCount)
	require.Len(t, p.Options, 2)
	require.NotNil(t, p.Options[0].VoterCount)
	assert.Equal(t, 2, *p.Options[0].VoterCount)
	assert.Equal(t, 7, *p.Options[1].VoterCount)
	require.NotNil(t, p.ChosenOptionID)
	assert.Equal(t, 1, *p.ChosenOptionID)
	require.NotNil(t, p.CorrectOptionID)
	assert.Equal(t, 1, *p.CorrectOptionID)
}

func TestConvertPollWithheldResults(t *testing.T) {
	t.Parallel()

	def := pollDefinition()
	def.Quiz = false
	def.PublicVoters = true
	p := convertPoll(&tg.MessageMediaPoll{Poll: def})
	require.NotNil(t, p)
	assert.Equal(t, bridge.PollRegular, p.Type)
	assert.False(t, p.IsAnonymous)
	assert.Nil(t, p.TotalVoterCount)
	assert.Nil(t, p.ChosenOptionID)
	assert.Nil(t, p.CorrectOptionID)
	for _, o := range p.Options {
		assert.Nil(t, o.VoterCount)
	}

	assert.Nil(t, convertPoll(nil))
}
