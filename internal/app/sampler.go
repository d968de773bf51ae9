package app

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerspell/internal/letter"
	"github.com/ayusman/fingerspell/internal/observe"
	"github.com/ayusman/fingerspell/internal/session"
)

// Tick failure stages reported in logs and metrics.
const (
	stageRead       = "read"
	stagePreprocess = "preprocess"
	stageClassify   = "classify"
	stageLabel      = "label"
)

// run is the sampler loop. Each iteration runs one tick to completion and
// then waits the full period, so ticks never overlap and are never skipped.
// Every FPSWindow ticks the observed rate is stored in the session.
func (a *App) run(ctx context.Context, sess *session.Session, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := a.cfg.Camera.Close(); err != nil {
			a.log.Warn("error closing camera", slog.Any("error", err))
		}
	}()

	windowStart := a.cfg.Clock.Now()
	ticks := 0

	for {
		enabled := a.IsEnabled()
		if enabled {
			a.tick(ctx, sess)
		}

		select {
		case <-ctx.Done():
			return
		case <-a.cfg.Clock.After(a.cfg.Period):
		}

		if !enabled {
			windowStart, ticks = a.cfg.Clock.Now(), 0
			continue
		}

		ticks++
		if ticks == a.cfg.FPSWindow {
			now := a.cfg.Clock.Now()
			if elapsed := now.Sub(windowStart).Seconds(); elapsed > 0 {
				fps := float64(ticks) / elapsed
				sess.SetFrameRate(fps)
				a.metrics.FrameRate.Record(ctx, fps)
			}
			windowStart, ticks = now, 0
		}
	}
}

// tick reads, classifies and observes one frame. Any failure skips the
// sample and leaves the session untouched.
func (a *App) tick(ctx context.Context, sess *session.Session) {
	ctx, span := observe.StartSpan(ctx, "sampler.tick")
	defer span.End()

	a.metrics.SamplerTicks.Add(ctx, 1)

	raw, err := a.cfg.Camera.ReadFrame()
	if err != nil {
		a.tickFailed(ctx, stageRead, err)
		return
	}
	defer raw.Close()

	start := time.Now()
	img, err := a.cfg.Classifier.Preprocess(ctx, raw)
	if err != nil {
		a.tickFailed(ctx, stagePreprocess, err)
		return
	}
	defer img.Close()

	a.publishFrame(img)

	idx, err := a.cfg.Classifier.Classify(ctx, img)
	if err != nil {
		a.tickFailed(ctx, stageClassify, err)
		return
	}
	a.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())

	label, err := letter.FromIndex(idx)
	if err != nil {
		a.tickFailed(ctx, stageLabel, err)
		return
	}

	ev, promoted := sess.Observe(label)
	if !promoted {
		a.notify(nil)
		return
	}

	switch ev.Kind {
	case session.EventCandidate:
		a.metrics.RecordCandidate(ctx, string(ev.Label))
	case session.EventSuppressed:
		a.metrics.Suppressed.Add(ctx, 1)
	}
	a.emit(ctx, ev)
}

func (a *App) tickFailed(ctx context.Context, stage string, err error) {
	a.metrics.RecordTickFailure(ctx, stage)
	if ctx.Err() != nil {
		return
	}
	a.log.Warn("sampler tick failed", slog.String("stage", stage), slog.Any("error", err))
}

// publishFrame keeps a JPEG copy of the processed image for the live stream.
func (a *App) publishFrame(img *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		a.log.Debug("failed to encode preview frame", slog.Any("error", err))
		return
	}
	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()
	a.setFrame(jpeg)
}
