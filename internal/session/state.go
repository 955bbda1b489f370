// Package session models one visitor's progress through the kiosk as a
// closed set of step variants. Each variant carries only the data that is
// valid at its step, and the transition methods are the only way to move
// from one variant to the next.
package session

import "kiosk/internal/domain"

type Step string

const (
	StepCapture         Step = "capture"
	StepSelection       Step = "selection"
	StepGeneratingImage Step = "generating-image"
	StepVoiceInput      Step = "voice-input"
	StepGeneratingVideo Step = "generating-video"
	StepResult          Step = "result"
)

// Busy reports whether a remote stage is running in this step.
func (s Step) Busy() bool {
	return s == StepGeneratingImage || s == StepGeneratingVideo
}

// Failure is the user-facing description of the last failed stage.
type Failure struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
}

// State is implemented by the six step variants only.
type State interface {
	Step() Step
	state()
}

// Capture is the initial step: nothing has been recorded yet.
type Capture struct{}

// Selection holds the captured photo while the visitor picks options.
type Selection struct {
	Source    domain.SourceImage
	LastError *Failure
}

type GeneratingImage struct {
	Source  domain.SourceImage
	Options domain.Options
}

// VoiceInput holds the portrait while the visitor picks a voice and text.
type VoiceInput struct {
	Source    domain.SourceImage
	Options   domain.Options
	Image     domain.GeneratedImage
	LastError *Failure
}

type GeneratingVideo struct {
	Source  domain.SourceImage
	Options domain.Options
	Image   domain.GeneratedImage
	Voice   domain.Voice
	Text    string
}

// Result is terminal until the session is restarted.
type Result struct {
	Source  domain.SourceImage
	Options domain.Options
	Image   domain.GeneratedImage
	Voice   domain.Voice
	Text    string
	Video   domain.VideoReference
}

func (Capture) Step() Step         { return StepCapture }
func (Selection) Step() Step       { return StepSelection }
func (GeneratingImage) Step() Step { return StepGeneratingImage }
func (VoiceInput) Step() Step      { return StepVoiceInput }
func (GeneratingVideo) Step() Step { return StepGeneratingVideo }
func (Result) Step() Step          { return StepResult }

func (Capture) state()         {}
func (Selection) state()       {}
func (GeneratingImage) state() {}
func (VoiceInput) state()      {}
func (GeneratingVideo) state() {}
func (Result) state()          {}

func (Capture) Captured(src domain.SourceImage) Selection {
	return Selection{Source: src}
}

// Back returns to capture and drops the photo.
func (Selection) Back() Capture {
	return Capture{}
}

// Generate starts the image stage. The previous error is cleared.
func (s Selection) Generate(opts domain.Options) GeneratingImage {
	return GeneratingImage{Source: s.Source, Options: opts}
}

func (g GeneratingImage) Succeeded(img domain.GeneratedImage) VoiceInput {
	return VoiceInput{Source: g.Source, Options: g.Options, Image: img}
}

func (g GeneratingImage) Failed(f *Failure) Selection {
	return Selection{Source: g.Source, LastError: f}
}

// Back returns to option selection. The portrait was made from the old
// options, so it is dropped.
func (v VoiceInput) Back() Selection {
	return Selection{Source: v.Source}
}

func (v VoiceInput) Generate(voice domain.Voice, text string) GeneratingVideo {
	return GeneratingVideo{Source: v.Source, Options: v.Options, Image: v.Image, Voice: voice, Text: text}
}

func (g GeneratingVideo) Succeeded(video domain.VideoReference) Result {
	return Result{Source: g.Source, Options: g.Options, Image: g.Image, Voice: g.Voice, Text: g.Text, Video: video}
}

// Failed keeps the portrait so the visitor can retry with another voice or text.
func (g GeneratingVideo) Failed(f *Failure) VoiceInput {
	return VoiceInput{Source: g.Source, Options: g.Options, Image: g.Image, LastError: f}
}
