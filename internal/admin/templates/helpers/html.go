package helpers

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HTML accumulates markup, escaping text and attribute values. The first
// write error sticks and is reported by Err.
type HTML struct {
	ctx context.Context
	w   io.Writer
	err error
}

// NewHTML wraps w.
func NewHTML(ctx context.Context, w io.Writer) *HTML {
	return &HTML{ctx: ctx, w: w}
}

// Raw writes trusted markup.
func (h *HTML) Raw(s string) *HTML {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

// Text writes escaped text content.
func (h *HTML) Text(s string) *HTML {
	return h.Raw(templ.EscapeString(s))
}

// Attr writes ` name="value"` with the value escaped.
func (h *HTML) Attr(name, value string) *HTML {
	return h.Raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}

// AttrIf writes a boolean attribute when cond holds.
func (h *HTML) AttrIf(cond bool, name string) *HTML {
	if cond {
		h.Raw(" " + name)
	}
	return h
}

// URL writes an href/src/action attribute, blocking unsafe schemes.
func (h *HTML) URL(name, value string) *HTML {
	return h.Attr(name, string(templ.URL(value)))
}

// Component renders a nested component.
func (h *HTML) Component(c templ.Component) *HTML {
	if h.err == nil && c != nil {
		h.err = c.Render(h.ctx, h.w)
	}
	return h
}

// Err returns the first write error.
func (h *HTML) Err() error {
	return h.err
}
