package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiosk/internal/domain"
	"kiosk/internal/locale"
	"kiosk/internal/session"
)

// Session is one visitor's run through the kiosk. All methods are safe for
// concurrent use. At most one stage runs at a time: a stage is only started
// from the interactive step before it, and that step is left before the
// lock is released.
type Session struct {
	id   string
	lang string
	o    *Orchestrator

	mu        sync.Mutex
	state     session.State
	epoch     uint64
	version   uint64
	cancel    context.CancelFunc
	catalog   *domain.Catalog
	voicesErr *session.Failure
	closed    bool
	subs      map[int]chan Snapshot
	nextSub   int

	stages sync.WaitGroup
}

func newSession(o *Orchestrator, id, lang string) *Session {
	return &Session{
		id:    id,
		lang:  lang,
		o:     o,
		state: session.Capture{},
		subs:  make(map[int]chan Snapshot),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Lang() string { return s.lang }

func (s *Session) Step() session.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Step()
}

// Busy reports whether a stage is in flight.
func (s *Session) Busy() bool {
	return s.Step().Busy()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Capture stores the visitor photo and moves on to option selection.
func (s *Session) Capture(src domain.SourceImage) error {
	if src.Empty() {
		return domain.ErrEmptyImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	c, ok := s.state.(session.Capture)
	if !ok {
		return s.invalidLocked("capture")
	}
	s.setLocked(c.Captured(src))
	return nil
}

// Back steps from selection to capture or from voice input to selection.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch st := s.state.(type) {
	case session.Selection:
		s.setLocked(st.Back())
	case session.VoiceInput:
		s.setLocked(st.Back())
	default:
		return s.invalidLocked("back")
	}
	return nil
}

// Restart cancels a running stage and resets the session to capture. A
// stage that returns afterwards is discarded.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.stopStageLocked()
	s.catalog = nil
	s.voicesErr = nil
	s.setLocked(session.Capture{})
	return nil
}

// Abandon cancels a running stage and closes all subscriptions. The
// in-flight video job is not cancelled at the provider.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopStageLocked()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// ConfirmOptions runs the image stage and returns once it has finished.
func (s *Session) ConfirmOptions(ctx context.Context, opts domain.Options) error {
	run, err := s.startImage(ctx, opts)
	if err != nil {
		return err
	}
	return run()
}

// SubmitOptions starts the image stage in the background. Only validation
// and transition errors are returned; the outcome shows up in the state.
func (s *Session) SubmitOptions(ctx context.Context, opts domain.Options) error {
	run, err := s.startImage(context.WithoutCancel(ctx), opts)
	if err != nil {
		return err
	}
	s.background(run)
	return nil
}

// ConfirmVoice runs speech, video and history and returns once they have
// finished.
func (s *Session) ConfirmVoice(ctx context.Context, voiceID, text string) error {
	run, err := s.startVideo(ctx, voiceID, text)
	if err != nil {
		return err
	}
	return run()
}

func (s *Session) SubmitVoice(ctx context.Context, voiceID, text string) error {
	run, err := s.startVideo(context.WithoutCancel(ctx), voiceID, text)
	if err != nil {
		return err
	}
	s.background(run)
	return nil
}

// Wait blocks until all background stages have returned.
func (s *Session) Wait() {
	s.stages.Wait()
}

// Voices returns the catalog loaded when the session entered voice input,
// or the current listing when none was loaded.
func (s *Session) Voices(ctx context.Context) (domain.Catalog, error) {
	s.mu.Lock()
	if s.catalog != nil {
		cat := *s.catalog
		s.mu.Unlock()
		return cat, nil
	}
	s.mu.Unlock()

	cat, err := s.o.deps.Voices.ListVoices(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	s.mu.Lock()
	if s.catalog == nil && !s.closed {
		s.catalog = &cat
		if s.voicesErr != nil {
			s.voicesErr = nil
			s.version++
			s.publishLocked()
		}
	}
	s.mu.Unlock()
	return cat, nil
}

// Subscribe delivers a snapshot after every change, starting with the
// current one. A slow reader only sees the latest snapshot. The channel is
// closed by the returned func or when the session is abandoned.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	ch <- s.snapshotLocked()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) startImage(parent context.Context, opts domain.Options) (func() error, error) {
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sel, ok := s.state.(session.Selection)
	if !ok {
		return nil, s.invalidLocked("confirm options")
	}
	gen := sel.Generate(opts)
	ctx, cancel, epoch := s.beginStageLocked(parent)
	s.setLocked(gen)
	return func() error {
		defer cancel()
		return s.runImage(ctx, epoch, gen)
	}, nil
}

func (s *Session) runImage(ctx context.Context, epoch uint64, gen session.GeneratingImage) error {
	log := s.stageLogger(stageImage)
	start := s.o.now()
	log.Info().
		Str("outfit", string(gen.Options.Outfit)).
		Str("setting", string(gen.Options.Setting)).
		Str("style", string(gen.Options.Style)).
		Str("aspect_ratio", string(gen.Options.AspectRatio)).
		Msg("pipeline: image stage started")

	img, err := s.o.deps.Images.SynthesizeImage(ctx, gen.Source, gen.Options)
	if err == nil && img.Empty() {
		err = domain.SynthesisError("image synthesis", errors.New("no image returned"))
	}
	if err != nil {
		return s.fail(ctx, epoch, stageImage, err, start, func(f *session.Failure) session.State {
			return gen.Failed(f)
		})
	}

	// The catalog is loaded before the step changes so the voice list is
	// ready as soon as voice input is shown.
	cat, catErr := s.o.deps.Voices.Refresh(ctx)

	s.mu.Lock()
	if s.epoch != epoch || s.closed {
		s.mu.Unlock()
		log.Debug().Msg("pipeline: image result discarded after restart")
		return ErrSuperseded
	}
	if catErr != nil {
		s.catalog = nil
		s.voicesErr = &session.Failure{
			Kind:    domain.KindOf(catErr),
			Message: s.o.deps.Messages.Message(s.lang, locale.VoicesUnavailable),
			Detail:  catErr.Error(),
		}
	} else {
		s.catalog = &cat
		s.voicesErr = nil
	}
	s.setLocked(gen.Succeeded(img))
	s.mu.Unlock()

	if catErr != nil {
		log.Warn().Err(catErr).Msg("pipeline: voice catalog refresh failed")
	}
	log.Info().Dur("took", s.o.now().Sub(start)).Int("voices", len(cat.Voices)).Msg("pipeline: image stage succeeded")
	return nil
}

func (s *Session) startVideo(parent context.Context, voiceID, text string) (func() error, error) {
	text = strings.TrimSpace(text)
	voiceID = strings.TrimSpace(voiceID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.state.(session.VoiceInput); !ok {
		err := s.invalidLocked("confirm voice")
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if text == "" {
		return nil, ErrEmptyText
	}
	cat, err := s.Voices(parent)
	if err != nil {
		return nil, err
	}
	voice, ok := cat.Find(voiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, voiceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	vi, ok := s.state.(session.VoiceInput)
	if !ok {
		return nil, s.invalidLocked("confirm voice")
	}
	gen := vi.Generate(voice, text)
	ctx, cancel, epoch := s.beginStageLocked(parent)
	s.setLocked(gen)
	return func() error {
		defer cancel()
		return s.runVideo(ctx, epoch, gen)
	}, nil
}

func (s *Session) runVideo(ctx context.Context, epoch uint64, gen session.GeneratingVideo) error {
	log := s.stageLogger(stageVideo)
	start := s.o.now()
	revert := func(f *session.Failure) session.State { return gen.Failed(f) }
	log.Info().Str("voice_id", gen.Voice.ProviderVoiceID).Int("text_len", len(gen.Text)).Msg("pipeline: video stage started")

	audio, err := s.o.deps.Speech.SynthesizeSpeech(ctx, gen.Text, gen.Voice.ProviderVoiceID)
	if err != nil {
		return s.fail(ctx, epoch, stageVideo, err, start, revert)
	}
	log.Debug().Int("audio_bytes", len(audio.Data)).Msg("pipeline: speech ready")

	video, err := s.o.deps.Video.SynthesizeVideo(ctx, gen.Image, audio)
	if err != nil {
		return s.fail(ctx, epoch, stageVideo, err, start, revert)
	}

	if !s.current(epoch) {
		log.Debug().Msg("pipeline: video result discarded after restart")
		return ErrSuperseded
	}

	rec := domain.GenerationRecord{
		VoiceID:   gen.Voice.ProviderVoiceID,
		VoiceName: gen.Voice.DisplayName,
		Text:      gen.Text,
		VideoURL:  string(video),
	}
	if err := s.o.deps.History.RecordGeneration(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = domain.PersistenceError("history", err)
		}
		if s.o.deps.PersistenceFatal {
			return s.fail(ctx, epoch, stageVideo, err, start, revert)
		}
		log.Error().Err(err).Str("video_url", string(video)).Msg("pipeline: history write failed, showing video anyway")
		s.o.deps.Notifier.StageFailed(ctx, s.id, "history", string(domain.KindPersistence), err)
	}

	s.mu.Lock()
	if s.epoch != epoch || s.closed {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.setLocked(gen.Succeeded(video))
	s.mu.Unlock()

	log.Info().Dur("took", s.o.now().Sub(start)).Str("video_url", string(video)).Msg("pipeline: video stage succeeded")
	s.o.deps.Notifier.VideoReady(ctx, s.id, gen.Voice.DisplayName, string(video))
	return nil
}

// fail reverts to the step before the stage. Cancellation reverts without
// an error message; a stage from before a restart changes nothing.
func (s *Session) fail(ctx context.Context, epoch uint64, stage string, err error, start time.Time, revert func(*session.Failure) session.State) error {
	log := s.stageLogger(stage)

	s.mu.Lock()
	if s.epoch != epoch || s.closed {
		s.mu.Unlock()
		log.Debug().Err(err).Msg("pipeline: stage result discarded after restart")
		return ErrSuperseded
	}
	var f *session.Failure
	if !errors.Is(err, context.Canceled) {
		f = s.o.failure(s.lang, stage, err)
	}
	s.setLocked(revert(f))
	s.mu.Unlock()

	if f == nil {
		log.Info().Msg("pipeline: stage cancelled")
		return err
	}
	log.Error().Err(err).Str("kind", string(f.Kind)).Dur("took", s.o.now().Sub(start)).Msg("pipeline: stage failed")
	s.o.deps.Notifier.StageFailed(ctx, s.id, stage, string(f.Kind), err)
	return err
}

func (s *Session) background(run func() error) {
	s.stages.Add(1)
	go func() {
		defer s.stages.Done()
		_ = run()
	}()
}

func (s *Session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && !s.closed
}

func (s *Session) beginStageLocked(parent context.Context) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx, cancel, s.epoch
}

func (s *Session) stopStageLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.epoch++
}

func (s *Session) setLocked(st session.State) {
	s.state = st
	s.version++
	s.publishLocked()
}

func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Session) invalidLocked(action string) error {
	return fmt.Errorf("%w: %s in step %s", ErrInvalidTransition, action, s.state.Step())
}

func (s *Session) stageLogger(stage string) zerolog.Logger {
	return s.o.logger.With().Str("session_id", s.id).Str("stage", stage).Logger()
}
