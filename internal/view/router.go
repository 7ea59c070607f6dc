package view

import (
	"io"
	"strings"

	"github.com/and161185/allin/internal/uistate"
)

// Renderer draws a page from a state snapshot.
type Renderer func(w io.Writer, st uistate.State) error

// Route binds a path to a page.
type Route struct {
	Path   string
	Name   string
	Render Renderer
	// OnEnter runs before the page is rendered.
	OnEnter func(ui *uistate.Store)
}

// Router resolves paths case-insensitively, ignoring a trailing slash.
type Router struct {
	routes   []Route
	notFound Route
}

// NewRouter returns the application route table.
func NewRouter() *Router {
	return &Router{
		routes: []Route{
			{Path: "/", Name: "home", Render: Body},
			{Path: "/About", Name: "about", Render: About},
			{Path: "/login", Name: "login", Render: Login, OnEnter: (*uistate.Store).OpenLogin},
		},
		notFound: Route{Path: "*", Name: "not-found", Render: NotFound},
	}
}

// Resolve returns the route for path, or the catch-all.
func (r *Router) Resolve(path string) Route {
	p := normalize(path)
	for _, rt := range r.routes {
		if strings.EqualFold(normalize(rt.Path), p) {
			return rt
		}
	}
	return r.notFound
}

// Open resolves path, runs its OnEnter against ui, and renders it.
func (r *Router) Open(w io.Writer, ui *uistate.Store, path string) (Route, error) {
	rt := r.Resolve(path)
	if rt.OnEnter != nil {
		rt.OnEnter(ui)
	}
	return rt, rt.Render(w, ui.Snapshot())
}

func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
