package plugin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/store"
)

// BindingLister returns the enabled bindings that apply to a label.
type BindingLister interface {
	ListForLabel(ctx context.Context, label string) ([]*store.Binding, error)
}

// Dispatcher runs the plugin actions bound to committed letters. Each
// confirm event is handled on its own goroutine; Wait blocks until all of
// them finish.
type Dispatcher struct {
	bindings BindingLister
	manager  *Manager
	executor *Executor
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(bindings BindingLister, manager *Manager, executor *Executor, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		bindings: bindings,
		manager:  manager,
		executor: executor,
		log:      log,
	}
}

// Dispatch starts the bound actions for ev. Only confirm events that appended
// text trigger plugins.
func (d *Dispatcher) Dispatch(ctx context.Context, ev session.Event) {
	if ev.Kind != session.EventConfirm || ev.Appended == "" {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(context.WithoutCancel(ctx), ev)
	}()
}

// Wait blocks until every started dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, ev session.Event) {
	bindings, err := d.bindings.ListForLabel(ctx, string(ev.Label))
	if err != nil {
		d.log.Error("failed to load bindings", slog.String("label", string(ev.Label)), slog.Any("error", err))
		return
	}

	for _, b := range bindings {
		log := d.log.With(
			slog.String("binding", b.ID),
			slog.String("plugin", b.PluginName),
			slog.String("action", b.ActionName))

		p, err := d.manager.Get(b.PluginName)
		if err != nil {
			log.Warn("bound plugin not available", slog.Any("error", err))
			continue
		}

		resp, err := d.executor.Execute(ctx, p, &Request{
			Action:    b.ActionName,
			SessionID: ev.SessionID,
			Letter:    string(ev.Label),
			Appended:  ev.Appended,
			Word:      ev.Word,
			Config:    b.Config,
		})
		switch {
		case err != nil:
			log.Error("plugin execution failed", slog.Any("error", err))
		case !resp.Success:
			log.Warn("plugin reported failure", slog.String("error", resp.Error))
		default:
			log.Debug("plugin action completed")
		}
	}
}
