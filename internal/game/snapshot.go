package game

import "github.com/stemsi/quizlock/internal/model"

// QuestionView is a question as shown to the player. CorrectIndex is only
// filled once the answer is revealed or the question is behind the player.
type QuestionView struct {
	Prompt       string           `json:"prompt"`
	Options      []string         `json:"options"`
	Difficulty   model.Difficulty `json:"difficulty"`
	CorrectIndex *int             `json:"correct_index,omitempty"`
}

// Snapshot is everything the presentation layer needs to render a session.
type Snapshot struct {
	State          State          `json:"state"`
	Error          string         `json:"error,omitempty"`
	RoundID        string         `json:"round_id,omitempty"`
	Origin         string         `json:"origin,omitempty"`
	QuestionCount  int            `json:"question_count"`
	CurrentIndex   int            `json:"current_index"`
	Questions      []QuestionView `json:"questions,omitempty"`
	Question       *QuestionView  `json:"question,omitempty"`
	Revealed       bool           `json:"revealed"`
	SelectedOption *int           `json:"selected_option"`
	Feedback       string         `json:"feedback,omitempty"`
	AdvancePending bool           `json:"advance_pending"`
	Progress       int            `json:"progress"`
	RewardURL      string         `json:"reward_url,omitempty"`
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State: c.state,
		Error: c.lastError,
	}

	switch {
	case c.state == StateWon:
		snap.QuestionCount = c.wonCount
		snap.CurrentIndex = c.wonCount
		snap.Progress = Progress(c.wonCount, c.wonCount)
		snap.RewardURL = c.rewardURL
	case c.round != nil:
		r := c.round
		snap.RoundID = r.ID.String()
		snap.Origin = string(r.Origin)
		snap.QuestionCount = len(r.Questions)
		snap.CurrentIndex = r.CurrentIndex
		snap.Revealed = r.Revealed
		snap.Feedback = r.Feedback
		snap.AdvancePending = c.pending != nil
		snap.Progress = Progress(r.CurrentIndex, len(r.Questions))
		if r.SelectedOption != nil {
			selected := *r.SelectedOption
			snap.SelectedOption = &selected
		}

		snap.Questions = make([]QuestionView, len(r.Questions))
		for i, q := range r.Questions {
			reveal := i < r.CurrentIndex || (i == r.CurrentIndex && r.Revealed)
			snap.Questions[i] = viewOf(q, reveal)
		}
		current := snap.Questions[r.CurrentIndex]
		snap.Question = &current
	}

	return snap
}

func viewOf(q model.Question, reveal bool) QuestionView {
	v := QuestionView{
		Prompt:     q.Prompt,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
	}
	if reveal {
		correct := q.CorrectIndex
		v.CorrectIndex = &correct
	}
	return v
}
