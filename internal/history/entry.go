package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/kiroshi/internal/imagegen"
)

const (
	OutcomeFinished = "finished"
	OutcomeError    = "error"
)

// Entry is one recorded generation session.
type Entry struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	Model          string        `json:"model"`
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negative_prompt"`
	Width          uint32        `json:"width"`
	Height         uint32        `json:"height"`
	Quality        string        `json:"quality"`
	Sampler        string        `json:"sampler"`
	Seed           uint64        `json:"seed"`
	Steps          uint32        `json:"steps"`
	Faces          int           `json:"faces"`
	Hands          int           `json:"hands"`
	Outcome        string        `json:"outcome"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

// EntryFor describes the session sessionID of def. fin is nil when the
// session ended with err.
func EntryFor(sessionID string, def imagegen.Definition, fin *imagegen.Finished, duration time.Duration, err error) Entry {
	e := Entry{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Model:          def.Model,
		Prompt:         def.Prompt,
		NegativePrompt: def.NegativePrompt,
		Width:          def.Size.Width,
		Height:         def.Size.Height,
		Quality:        def.Quality.String(),
		Sampler:        def.Sampler.String(),
		Seed:           uint64(def.Seed),
		Steps:          uint32(def.Steps),
		Outcome:        OutcomeFinished,
		Duration:       duration,
	}
	if fin != nil {
		e.Faces = len(fin.Faces)
		e.Hands = len(fin.Hands)
	}
	if err != nil {
		e.Outcome = OutcomeError
		e.Error = err.Error()
	}
	return e
}
