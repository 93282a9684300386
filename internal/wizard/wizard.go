// Package wizard models the upload flow as an explicit state machine:
// upload, then process, then review. A step can be left forward only after
// its guard held for the batch's documents.
package wizard

import (
	"errors"

	"docflow/internal/models"
)

type Step string

const (
	StepUpload  Step = "upload"
	StepProcess Step = "process"
	StepReview  Step = "review"
)

var steps = []Step{StepUpload, StepProcess, StepReview}

var (
	ErrStepNotValid = errors.New("current step has not been validated")
	ErrLastStep     = errors.New("already at the last step")
	ErrFirstStep    = errors.New("already at the first step")
)

// State is a snapshot of the wizard.
type State struct {
	Current    Step   `json:"current"`
	Validated  []Step `json:"validated"`
	CanAdvance bool   `json:"canAdvance"`
	Complete   bool   `json:"complete"`
}

type Wizard struct {
	current   int
	validated map[Step]bool
}

func New() *Wizard {
	return &Wizard{validated: make(map[Step]bool, len(steps))}
}

func (w *Wizard) Current() Step {
	return steps[w.current]
}

// Validate evaluates the guard of the current step against docs and
// records the result.
func (w *Wizard) Validate(docs []*models.Document) bool {
	step := w.Current()
	ok := guard(step, docs)
	w.validated[step] = ok
	return ok
}

func (w *Wizard) Next() error {
	if w.current == len(steps)-1 {
		return ErrLastStep
	}
	if !w.validated[w.Current()] {
		return ErrStepNotValid
	}
	w.current++
	return nil
}

// Back moves one step back and forgets validation of the steps after it.
func (w *Wizard) Back() error {
	if w.current == 0 {
		return ErrFirstStep
	}
	for _, s := range steps[w.current:] {
		delete(w.validated, s)
	}
	w.current--
	return nil
}

func (w *Wizard) State() State {
	st := State{Current: w.Current(), Validated: []Step{}}
	for _, s := range steps {
		if w.validated[s] {
			st.Validated = append(st.Validated, s)
		}
	}
	last := w.current == len(steps)-1
	st.CanAdvance = !last && w.validated[w.Current()]
	st.Complete = last && w.validated[w.Current()]
	return st
}

// Evaluate replays the wizard over docs as far as the guards allow.
func Evaluate(docs []*models.Document) State {
	w := New()
	for w.Validate(docs) {
		if err := w.Next(); err != nil {
			break
		}
	}
	return w.State()
}

func guard(step Step, docs []*models.Document) bool {
	counts := make(map[models.DocumentStatus]int)
	for _, d := range docs {
		counts[d.Status]++
	}
	switch step {
	case StepUpload:
		return len(docs) > 0
	case StepProcess:
		// Failed and pending documents do not count; committed ones already
		// passed processing.
		return counts[models.DocumentStatusProcessed]+counts[models.DocumentStatusCommitted] > 0
	case StepReview:
		return counts[models.DocumentStatusProcessed] == 0 && counts[models.DocumentStatusCommitted] > 0
	}
	return false
}
