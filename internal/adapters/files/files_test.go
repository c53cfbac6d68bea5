package files_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/nbaetl/internal/adapters/files"
	"github.com/okian/nbaetl/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJSONFiles(t *testing.T) {
	Convey("Given a temporary data directory", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "raw", "api_players.json")

		Convey("When writing raw records", func() {
			recs := []model.RawRecord{
				{"id": json.Number("1"), "team": map[string]any{"id": json.Number("5")}},
				{"id": json.Number("9007199254740993")},
			}
			err := files.WriteJSON(path, recs)

			Convey("Then the file should be an indented array", func() {
				So(err, ShouldBeNil)
				b, rerr := os.ReadFile(path)
				So(rerr, ShouldBeNil)
				So(string(b), ShouldStartWith, "[\n  {")
				So(files.Exists(path), ShouldBeTrue)
			})

			Convey("Then reading it back should keep large ids exact", func() {
				back, rerr := files.ReadRecords(path)
				So(rerr, ShouldBeNil)
				So(back, ShouldHaveLength, 2)
				id, ok := back[1].ID()
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, int64(9007199254740993))
			})
		})

		Convey("When reading a missing file", func() {
			_, err := files.ReadRecords(filepath.Join(dir, "nope.json"))

			Convey("Then the error should wrap os.ErrNotExist", func() {
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
				So(files.Exists(filepath.Join(dir, "nope.json")), ShouldBeFalse)
			})
		})

		Convey("When reading a malformed file", func() {
			bad := filepath.Join(dir, "bad.json")
			So(os.WriteFile(bad, []byte("{not json"), 0o600), ShouldBeNil)
			_, err := files.ReadRecords(bad)

			Convey("Then it should report a decode error", func() {
				So(errors.Is(err, files.ErrDecode), ShouldBeTrue)
			})
		})
	})
}

func TestCSVFiles(t *testing.T) {
	Convey("Given rows with mixed values", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "players_norm.csv")
		rows := [][]any{
			{int64(1), "Stephen", "Curry", "G", int64(10)},
			{int64(2), "Jo, Jr.", nil, "", int64(-1)},
		}

		Convey("When writing a CSV table", func() {
			err := files.WriteCSV(path, model.PlayerColumns, rows)

			Convey("Then the header and quoted cells should be written without an index", func() {
				So(err, ShouldBeNil)
				b, _ := os.ReadFile(path)
				lines := strings.Split(strings.TrimSpace(string(b)), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldEqual, "id,first,last,pos,team_id")
				So(lines[1], ShouldEqual, "1,Stephen,Curry,G,10")
				So(lines[2], ShouldEqual, `2,"Jo, Jr.",,,-1`)
			})
		})

		Convey("When writing JSON lines", func() {
			p := filepath.Join(dir, "events.jsonl")
			err := files.WriteJSONLines(p, []map[string]int{{"a": 1}, {"a": 2}})

			Convey("Then each item should be one line", func() {
				So(err, ShouldBeNil)
				b, _ := os.ReadFile(p)
				So(string(b), ShouldEqual, "{\"a\":1}\n{\"a\":2}\n")
			})
		})
	})
}

func TestFormatCell(t *testing.T) {
	Convey("Given scalar and nested values", t, func() {
		v := int64(7)
		So(files.FormatCell(nil), ShouldEqual, "")
		So(files.FormatCell(3.0), ShouldEqual, "3")
		So(files.FormatCell(29.8), ShouldEqual, "29.8")
		So(files.FormatCell(&v), ShouldEqual, "7")
		So(files.FormatCell((*int64)(nil)), ShouldEqual, "")
		So(files.FormatCell(true), ShouldEqual, "True")
		So(files.FormatCell([]any{1, 2}), ShouldEqual, "[1,2]")
	})
}
