package view

import (
	"io"
	"sync"

	"github.com/and161185/allin/internal/model"
	"github.com/and161185/allin/internal/uistate"
	"go.uber.org/zap"
)

// Screen keeps views on w in sync with the store. Each view is redrawn only
// when the slice it depends on changes.
type Screen struct {
	mu    sync.Mutex
	w     io.Writer
	ui    *uistate.Store
	log   *zap.Logger
	stops []func()
}

// Attach subscribes the body, header and modal views to ui.
func Attach(w io.Writer, ui *uistate.Store, log *zap.Logger) *Screen {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Screen{w: w, ui: ui, log: log}
	s.stops = append(s.stops,
		uistate.Select(ui, uistate.ProfileLoading, func(bool) { s.draw("body", Body) }),
		uistate.Select(ui, uistate.Profile, func(*model.Profile) {
			// hidden behind the loading placeholder; the body redraws it afterwards
			if ui.Snapshot().ProfileLoading {
				return
			}
			s.draw("header", Header)
		}),
		uistate.Select(ui, uistate.LoginModal, func(bool) { s.draw("modal", LoginModal) }),
	)
	return s
}

// Detach stops all redraws.
func (s *Screen) Detach() {
	for _, stop := range s.stops {
		stop()
	}
}

func (s *Screen) draw(name string, r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r(s.w, s.ui.Snapshot()); err != nil {
		s.log.Warn("render", zap.String("view", name), zap.Error(err))
	}
}
