package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/dashboard"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/go-chi/chi/v5"
)

// competitorsFilename is the download name of the competitors export.
const competitorsFilename = "dados_empresas.csv"

// Dataset is the read model behind the dashboard data API.
type Dataset interface {
	Stats() dashboard.Stats
	FilterOptions() domain.FilterOptions
	Points(f domain.Filter, jitter bool) []domain.MapPoint
	StateCounts(f domain.Filter) []domain.StateCount
	StatePopulation(uf string) (dashboard.StateDetail, error)
	MunicipalityPopulation(name, uf string) (dashboard.MunicipalityDetail, error)
}

type apiHandler struct {
	data   Dataset
	logger *slog.Logger
}

func (h *apiHandler) routes(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Get("/filters", h.filters)
	r.Get("/map/points", h.points)
	r.Get("/map/states", h.stateCounts)
	r.Get("/states/{uf}/population", h.statePopulation)
	r.Get("/municipalities/{name}/population", h.municipalityPopulation)
	r.Get("/export/competitors.csv", h.exportCompetitors)
}

func (h *apiHandler) stats(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.data.Stats())
}

func (h *apiHandler) filters(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.data.FilterOptions())
}

func (h *apiHandler) points(w http.ResponseWriter, r *http.Request) {
	jitter, _ := strconv.ParseBool(r.URL.Query().Get("jitter"))
	sharedobs.WriteJSON(w, http.StatusOK, h.data.Points(parseFilter(r), jitter))
}

func (h *apiHandler) stateCounts(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.data.StateCounts(parseFilter(r)))
}

func (h *apiHandler) statePopulation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.data.StatePopulation(chi.URLParam(r, "uf"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, detail)
}

func (h *apiHandler) municipalityPopulation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.data.MunicipalityPopulation(chi.URLParam(r, "name"), r.URL.Query().Get("uf"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, detail)
}

func (h *apiHandler) exportCompetitors(w http.ResponseWriter, r *http.Request) {
	points := h.data.Points(parseFilter(r), false)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+competitorsFilename+`"`)
	if err := csvfile.WriteCompetitors(w, points, csvfile.Options{}); err != nil {
		h.logger.Warn("competitors export failed", "error", err)
	}
}

func (h *apiHandler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dashboard.ErrAmbiguous):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("dataset lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseFilter reads the repeatable uf, tipo, concorrente and status query
// parameters. uf also accepts a comma-separated list.
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	var ufs []string
	for _, v := range q["uf"] {
		ufs = append(ufs, strings.Split(v, ",")...)
	}
	return domain.Filter{
		UFs:         nonEmpty(ufs),
		Types:       nonEmpty(q["tipo"]),
		Competitors: nonEmpty(q["concorrente"]),
		Statuses:    nonEmpty(q["status"]),
	}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
