package app

import (
	"context"
	"log/slog"

	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
)

// LoadTemplates replaces the matcher's templates with the trained letter
// templates in the store. Templates without landmarks or with an unknown
// label are skipped. It is a no-op unless both a store and a matcher are
// configured.
func (a *App) LoadTemplates(ctx context.Context) error {
	if a.cfg.Store == nil || a.cfg.Matcher == nil {
		return nil
	}

	repo := a.cfg.Store.Templates()
	stored, err := repo.List(ctx)
	if err != nil {
		return err
	}

	templates := make([]*classifier.LetterTemplate, 0, len(stored))
	for _, t := range stored {
		label, err := letter.Parse(t.Label)
		if err != nil {
			a.log.Warn("skipping template with unknown label", slog.String("template", t.ID), slog.String("label", t.Label))
			continue
		}
		points, err := repo.Landmarks(ctx, t.ID)
		if err != nil {
			a.log.Warn("failed to load landmarks", slog.String("template", t.ID), slog.Any("error", err))
			continue
		}
		if len(points) == 0 {
			continue
		}

		landmarks := make([]detector.Point3D, len(points))
		for i, p := range points {
			landmarks[i] = detector.Point3D{X: p.X, Y: p.Y, Z: p.Z}
		}
		templates = append(templates, &classifier.LetterTemplate{
			ID:        t.ID,
			Label:     label,
			Landmarks: landmarks,
			Tolerance: t.Tolerance,
		})
	}

	a.cfg.Matcher.Replace(templates)
	a.log.Info("letter templates loaded", slog.Int("count", len(templates)))
	return nil
}
