package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nbaetl/internal/adapters/http/api"
	service "github.com/okian/nbaetl/internal/app"
	"github.com/okian/nbaetl/internal/domain/catalog"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDeps struct {
	submitErr  error
	submitted  []string
	runs       map[string]service.Run
	readErr    error
	players    catalog.PlayerFilter
	teams      catalog.Paging
	games      catalog.GameFilter
	playerPage catalog.Page[catalog.Player]
}

func (m *mockDeps) Submit(_ context.Context, origin string) (service.Run, error) {
	if m.submitErr != nil {
		return service.Run{}, m.submitErr
	}
	m.submitted = append(m.submitted, origin)
	return service.Run{ID: fmt.Sprintf("run-%d", len(m.submitted)), Status: model.RunQueued, Origin: origin}, nil
}

func (m *mockDeps) Lookup(_ context.Context, id string) (service.Run, error) {
	r, ok := m.runs[id]
	if !ok {
		return service.Run{}, fmt.Errorf("%w: %s", service.ErrRunNotFound, id)
	}
	return r, nil
}

func (m *mockDeps) Players(_ context.Context, f catalog.PlayerFilter) (catalog.Page[catalog.Player], error) {
	m.players = f
	return m.playerPage, m.readErr
}

func (m *mockDeps) Teams(_ context.Context, p catalog.Paging) (catalog.Page[catalog.Team], error) {
	m.teams = p
	return catalog.Page[catalog.Team]{Page: p.Page, Size: p.Size}, m.readErr
}

func (m *mockDeps) Games(_ context.Context, f catalog.GameFilter) (catalog.Page[catalog.Game], error) {
	m.games = f
	return catalog.Page[catalog.Game]{}, m.readErr
}

type stats map[string]interface{}

func (s stats) GetStats() map[string]interface{} { return s }

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	api.NewServer(deps, stats{"started": true}, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestRunETL(t *testing.T) {
	Convey("Given an open server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a run is triggered with POST", func() {
			w := do(mux, http.MethodPost, "/run-etl")

			Convey("Then it should be accepted immediately", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode(w)
				So(body["status"], ShouldEqual, "ETL started in background")
				So(body["run_id"], ShouldEqual, "run-1")
				So(deps.submitted, ShouldResemble, []string{"http"})
			})
		})

		Convey("When a run is triggered with GET", func() {
			w := do(mux, http.MethodGet, "/run-etl")

			Convey("Then it should be accepted as well", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrQueueFull
			w := do(mux, http.MethodPost, "/run-etl")

			Convey("Then it should signal backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the service is not running", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/run-etl")

			Convey("Then it should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestGetRun(t *testing.T) {
	Convey("Given a known run", t, func() {
		deps := &mockDeps{runs: map[string]service.Run{
			"abc": {ID: "abc", Status: model.RunFailed, Error: "stage extract: boom"},
		}}
		mux := newMux(deps)

		Convey("Then it should be reported", func() {
			w := do(mux, http.MethodGet, "/runs/abc")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["run_id"], ShouldEqual, "abc")
			So(body["status"], ShouldEqual, "failed")
			So(body["error"], ShouldEqual, "stage extract: boom")
		})

		Convey("Then an unknown run should be 404", func() {
			w := do(mux, http.MethodGet, "/runs/zzz")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestCatalogEndpoints(t *testing.T) {
	Convey("Given a server over a catalog", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When players are filtered", func() {
			deps.playerPage = catalog.Page[catalog.Player]{
				Items: []catalog.Player{{ID: 237, First: "LeBron", Last: "James"}},
				Page:  2, Size: 5, Total: 6,
			}
			w := do(mux, http.MethodGet, "/players?team_id=14&q=%20james%20&page=2&size=5")

			Convey("Then the filter should reach the reader", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.players.TeamID, ShouldEqual, int64(14))
				So(deps.players.Q, ShouldEqual, "james")
				So(deps.players.Paging, ShouldResemble, catalog.Paging{Page: 2, Size: 5})
			})

			Convey("Then the page should be returned", func() {
				body := decode(w)
				So(body["total"], ShouldEqual, float64(6))
				So(body["items"], ShouldHaveLength, 1)
			})
		})

		Convey("When teams are listed without paging", func() {
			w := do(mux, http.MethodGet, "/teams")

			Convey("Then defaults should apply", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.teams, ShouldResemble, catalog.Paging{Page: 1, Size: catalog.DefaultTeamsSize})
				So(decode(w)["items"], ShouldResemble, []any{})
			})
		})

		Convey("When an oversized page is asked for", func() {
			do(mux, http.MethodGet, "/teams?size=100000")

			Convey("Then it should be capped", func() {
				So(deps.teams.Size, ShouldEqual, catalog.MaxSize)
			})
		})

		Convey("When games are filtered", func() {
			w := do(mux, http.MethodGet, "/games?season=2023&team_id=2")

			Convey("Then season and team should reach the reader", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.games.Season, ShouldEqual, int64(2023))
				So(*deps.games.TeamID, ShouldEqual, int64(2))
				So(deps.games.Size, ShouldEqual, catalog.DefaultGamesSize)
			})
		})

		Convey("When a parameter is malformed", func() {
			for _, target := range []string{
				"/games?season=abc", "/players?page=0", "/teams?size=x", "/players?team_id=1.5",
				"/teams?page=9223372036854775807", "/games?page=1000001",
			} {
				w := do(mux, http.MethodGet, target)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When no store is configured", func() {
			deps.readErr = service.ErrNoStore
			w := do(mux, http.MethodGet, "/players")

			Convey("Then reads should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the store fails", func() {
			deps.readErr = errors.New("connection reset")
			w := do(mux, http.MethodGet, "/games")

			Convey("Then it should be an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestAPIKey(t *testing.T) {
	Convey("Given a server with an API key", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps, api.WithAPIKey("secret"))

		Convey("Then requests without the key should be rejected", func() {
			for _, target := range []string{"/run-etl", "/players", "/teams", "/games", "/runs/x"} {
				w := do(mux, http.MethodGet, target)
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			}
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("Then a wrong key should be rejected", func() {
			w := do(mux, http.MethodPost, "/run-etl", api.APIKeyHeader, "guess")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then the right key should pass", func() {
			w := do(mux, http.MethodPost, "/run-etl", api.APIKeyHeader, "secret")
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("Then health and metrics should stay open", func() {
			So(do(mux, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/metrics").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an open server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then /healthz should report ok", func() {
			w := do(mux, http.MethodGet, "/healthz")
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /stats should expose service stats", func() {
			w := do(mux, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then / should redirect to the API document", func() {
			w := do(mux, http.MethodGet, "/")
			So(w.Code, ShouldEqual, http.StatusFound)
			So(w.Header().Get("Location"), ShouldEqual, "/openapi.yaml")
		})

		Convey("Then unknown methods should be refused", func() {
			w := do(mux, http.MethodDelete, "/run-etl")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a nil mux", t, func() {
		Convey("Then registering should panic", func() {
			So(func() {
				api.NewServer(&mockDeps{}, stats{}).Register(context.Background(), nil)
			}, ShouldPanic)
		})
	})
}
