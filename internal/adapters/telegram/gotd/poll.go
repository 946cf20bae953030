package gotd

import (
	"strconv"
	"time"

	"github.com/gotd/td/tg"

	"telegram-bridge/internal/bridge"
)

// convertPoll соединяет определение опроса и его результаты по индексу варианта.
// Если сервер не прислал результаты, счётчики голосов остаются nil.
func convertPoll(media *tg.MessageMediaPoll) *bridge.Poll {
	if media == nil {
		return nil
	}
	def := media.Poll
	res := media.Results
	results, hasResults := res.GetResults()

	p := &bridge.Poll{
		ID:                    strconv.FormatInt(def.ID, 10),
		Question:              def.Question.Text,
		IsClosed:              def.Closed,
		IsAnonymous:           !def.PublicVoters,
		Type:                  bridge.PollRegular,
		AllowsMultipleAnswers: def.MultipleChoice,
		OpenPeriod:            def.ClosePeriod,
		Options:               make([]bridge.PollOption, 0, len(def.Answers)),
	}
	if def.Quiz {
		p.Type = bridge.PollQuiz
	}
	if def.CloseDate != 0 {
		p.CloseDate = time.Unix(int64(def.CloseDate), 0).UTC()
	}
	if total, ok := res.GetTotalVoters(); ok {
		p.TotalVoterCount = &total
	}
	if solution, ok := res.GetSolution(); ok {
		p.Explanation = solution
	}

	for i, answer := range def.Answers {
		opt := bridge.PollOption{Text: answer.Text.Text, Data: answer.Option}
		if hasResults && i < len(results) {
			r := results[i]
			voters := r.Voters
			opt.VoterCount = &voters
			if r.Chosen {
				p.ChosenOptionID = intPtr(i)
			}
			if r.Correct {
				p.CorrectOptionID = intPtr(i)
			}
		}
		p.Options = append(p.Options, opt)
	}
	return p
}

func intPtr(v int) *int { return &v }
