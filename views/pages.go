package views

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/a-h/templ"
)

// writer collects the first write error so components can emit markup
// without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) printf(format string, args ...any) {
	w.raw(fmt.Sprintf(format, args...))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(title)
		w.raw(`</title></head><body><header><span class="brand">Brick Bracket</span>`)
		if user := middleware.GetAuthenticatedUser(ctx); user != nil {
			w.raw(`<span class="user">`)
			w.text(user.Username)
			w.raw(`</span><form method="post" action="/logout"><button type="submit">Log out</button></form>`)
		} else {
			w.raw(`<a href="/login">Log in</a>`)
		}
		w.raw(`</header><main>`)
		if w.err != nil {
			return w.err
		}
		if err := body.Render(ctx, out); err != nil {
			return err
		}
		w.raw(`</main></body></html>`)
		return w.err
	})
}

func LoginPage(providers []string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Log in</h1><ul class="providers">`)
		for _, p := range providers {
			w.raw(`<li><a href="`)
			w.text("/auth/" + p)
			w.raw(`">Continue with `)
			w.text(strings.ToUpper(p[:1]) + p[1:])
			w.raw(`</a></li>`)
		}
		w.raw(`</ul>`)
		return w.err
	})
	return layout("Log in", body)
}

func BracketPage(data BracketData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		t := data.Tournament

		w.raw(`<h1>`)
		w.text(t.Title)
		w.raw(`</h1><p class="meta">`)
		w.text(string(t.Kind))
		w.raw(` &middot; `)
		if t.Completed() {
			w.raw(`completed`)
		} else {
			w.text(StageLabel(t.CurrentStage))
			w.raw(` &middot; `)
			if data.Remaining > 0 {
				w.text(data.Remaining.Round(time.Minute).String())
				w.raw(` left to vote`)
			} else {
				w.raw(`voting closed, waiting for the next stage`)
			}
		}
		w.raw(`</p>`)

		if data.Champion != "" {
			w.raw(`<section class="champion"><h2>Champion</h2><p>`)
			w.text(data.Champion)
			if data.Winner != nil {
				w.printf(` <small>%d votes</small>`, data.Winner.TotalVotes)
			}
			w.raw(`</p></section>`)
		}

		w.raw(`<div class="bracket">`)
		for _, col := range data.Stages {
			if col.Current {
				w.raw(`<section class="stage current">`)
			} else {
				w.raw(`<section class="stage">`)
			}
			w.raw(`<h2>`)
			w.text(col.Label)
			w.raw(`</h2>`)
			for _, p := range col.Pairs {
				w.raw(`<div class="pair" id="pair-`)
				w.text(p.ID.String())
				w.raw(`">`)
				writeSlot(w, p.First)
				if p.Second != nil {
					writeSlot(w, *p.Second)
				} else {
					w.raw(`<div class="slot walkover">walkover</div>`)
				}
				w.raw(`</div>`)
			}
			w.raw(`</section>`)
		}
		w.raw(`</div>`)
		return w.err
	})
	return layout(data.Tournament.Title, body)
}

func writeSlot(w *writer, s Slot) {
	if s.Won {
		w.raw(`<div class="slot won">`)
	} else {
		w.raw(`<div class="slot">`)
	}
	w.raw(`<span class="name">`)
	w.text(s.Name)
	w.printf(`</span><span class="votes">%d</span></div>`, s.Votes)
}
