package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	service "github.com/okian/nbaetl/internal/app"
	"github.com/okian/nbaetl/internal/domain/catalog"
)

// CatalogHandler serves the stored players, teams and games.
type CatalogHandler struct {
	reader catalog.Reader
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(reader catalog.Reader) *CatalogHandler {
	return &CatalogHandler{reader: reader}
}

// HandlePlayers handles GET /players?team_id&q&page&size.
func (h *CatalogHandler) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging, err := parsePaging(q, catalog.DefaultPlayersSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	teamID, err := optionalInt(q, "team_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.reader.Players(r.Context(), catalog.PlayerFilter{
		Paging: paging,
		TeamID: teamID,
		Q:      strings.TrimSpace(q.Get("q")),
	})
	respond(w, page, err)
}

// HandleTeams handles GET /teams?page&size.
func (h *CatalogHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	paging, err := parsePaging(r.URL.Query(), catalog.DefaultTeamsSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.reader.Teams(r.Context(), paging)
	respond(w, page, err)
}

// HandleGames handles GET /games?season&team_id&page&size.
func (h *CatalogHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paging, err := parsePaging(q, catalog.DefaultGamesSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	season, err := optionalInt(q, "season")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	teamID, err := optionalInt(q, "team_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.reader.Games(r.Context(), catalog.GameFilter{Paging: paging, Season: season, TeamID: teamID})
	respond(w, page, err)
}

func respond[T any](w http.ResponseWriter, page catalog.Page[T], err error) {
	switch {
	case err == nil:
		if page.Items == nil {
			page.Items = []T{}
		}
		writeJSON(w, http.StatusOK, page)
	case errors.Is(err, service.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func parsePaging(q url.Values, defaultSize int) (catalog.Paging, error) {
	var p catalog.Paging
	for key, dst := range map[string]*int{"page": &p.Page, "size": &p.Size} {
		v, err := optionalInt(q, key)
		if err != nil {
			return p, err
		}
		if v == nil {
			continue
		}
		if *v < 1 {
			return p, fmt.Errorf("%w: %s must be positive", ErrBadRequest, key)
		}
		if key == "page" && *v > catalog.MaxPage {
			return p, fmt.Errorf("%w: page must not exceed %d", ErrBadRequest, catalog.MaxPage)
		}
		*dst = int(*v)
	}
	return p.Normalize(defaultSize), nil
}

func optionalInt(q url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return &v, nil
}
