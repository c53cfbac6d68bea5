package auxiliary_test

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nbaetl/internal/adapters/source/auxiliary"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestExtractor(t *testing.T) {
	Convey("Given an extractor over a fresh directory", t, func() {
		layout := model.Layout{Dir: t.TempDir() + "/raw"}
		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		e := auxiliary.New(layout, auxiliary.WithEventCount(3), auxiliary.WithClock(func() time.Time { return at }))
		teams := []model.Team{
			{ID: 1, Abbr: "ATL", Name: "Atlanta Hawks"},
			{ID: 2, Abbr: "BOS", Name: "Boston Celtics"},
		}

		Convey("When running twice", func() {
			first, err := e.Run(context.Background(), teams)
			So(err, ShouldBeNil)
			second, err := e.Run(context.Background(), append(teams, model.Team{ID: 3, Name: "Brooklyn Nets"}))
			So(err, ShouldBeNil)

			Convey("Then the mirror should only gain unseen teams", func() {
				So(first.MirroredTeams, ShouldEqual, 2)
				So(second.MirroredTeams, ShouldEqual, 1)

				db, err := sql.Open("sqlite", layout.Path(model.MirrorDBFile))
				So(err, ShouldBeNil)
				defer db.Close()
				var n int
				So(db.QueryRow(`SELECT COUNT(*) FROM mirror_teams`).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 3)
				var name string
				So(db.QueryRow(`SELECT name FROM mirror_teams WHERE id = 2`).Scan(&name), ShouldBeNil)
				So(name, ShouldEqual, "Boston Celtics")
			})

			Convey("Then the stat sheet should hold the seeded line", func() {
				b, err := os.ReadFile(layout.Path(model.ExtraStatsFile))
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "player_id,season,pts,reb,ast\n237,2023,29.8,8.2,6.4\n")
				So(second.StatRows, ShouldEqual, 1)
			})

			Convey("Then the event log should hold one event per line", func() {
				f, err := os.Open(layout.Path(model.EventLogFile))
				So(err, ShouldBeNil)
				defer f.Close()

				var events []auxiliary.Event
				sc := bufio.NewScanner(f)
				for sc.Scan() {
					var ev auxiliary.Event
					So(json.Unmarshal(sc.Bytes(), &ev), ShouldBeNil)
					events = append(events, ev)
				}
				So(events, ShouldResemble, []auxiliary.Event{
					{PlayerID: 100, Event: "score", Value: 2, Timestamp: "2024-03-01T10:00:00Z"},
					{PlayerID: 101, Event: "score", Value: 2, Timestamp: "2024-03-01T10:00:00Z"},
					{PlayerID: 102, Event: "score", Value: 2, Timestamp: "2024-03-01T10:00:00Z"},
				})
				So(second.Events, ShouldEqual, 3)
			})
		})

		Convey("When the mirror path is unusable", func() {
			So(os.MkdirAll(layout.Path(model.MirrorDBFile), 0o755), ShouldBeNil)
			_, err := e.Run(context.Background(), teams)

			Convey("Then the failure should propagate", func() {
				So(errors.Is(err, auxiliary.ErrMirror), ShouldBeTrue)
			})
		})
	})
}
