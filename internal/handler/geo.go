package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
)

func (h *Handler) listDivisions(w http.ResponseWriter, _ *http.Request) {
	ix := h.geo.Index()
	h.writeOptions(w, ix.Divisions())
}

// listChildren lists the nodes of level l under the {id} path value. Unknown
// parents yield an empty list.
func (h *Handler) listChildren(l geo.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeOptions(w, h.geo.Index().Children(l, r.PathValue("id")))
	}
}

func (h *Handler) writeOptions(w http.ResponseWriter, nodes []geo.Node) {
	available := h.geo.Available()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOptions(e, available, nodes)
	})
}

// reloadGeo reloads the dataset on user request. A failed load is reported
// in the body; the previous options stay when the new load covers fewer levels.
func (h *Handler) reloadGeo(w http.ResponseWriter, r *http.Request) {
	err := h.geo.Reload(r.Context())
	if err != nil {
		var loadErr *geo.LoadError
		if !errors.As(err, &loadErr) {
			writeErr(w, r, errors.Wrap(err, "reload geography"))
			return
		}
		zctx.From(r.Context()).Warn("Geography reload incomplete",
			zap.Strings("failed", loadErr.Resources()),
		)
	}
	h.writeOptions(w, h.geo.Index().Divisions())
}
