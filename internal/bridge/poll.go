package bridge

import "time"

// PollType различает обычный опрос и викторину.
type PollType string

const (
	PollRegular PollType = "regular"
	PollQuiz    PollType = "quiz"
)

// PollOption — вариант ответа. VoterCount == nil, если сервер не отдал результаты.
type PollOption struct {
	Text       string
	Data       []byte
	VoterCount *int
}

// Poll — нормализованный снимок опроса.
type Poll struct {
	ID                    string
	Question              string
	Options               []PollOption
	TotalVoterCount       *int
	IsClosed              bool
	IsAnonymous           bool
	Type                  PollType
	AllowsMultipleAnswers bool
	ChosenOptionID        *int
	CorrectOptionID       *int
	Explanation           string
	OpenPeriod            int
	CloseDate             time.Time
}
