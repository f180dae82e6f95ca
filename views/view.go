package views

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"
)

func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to render page")
		return err
	}
	return nil
}
