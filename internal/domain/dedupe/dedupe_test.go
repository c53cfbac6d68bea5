package dedupe_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/nbaetl/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTracker(t *testing.T) {
	Convey("Given a new Tracker", t, func() {
		tr := dedupe.NewTracker[int64](dedupe.WithCapacity(8))

		Convey("When a key is recorded for the first time", func() {
			seen := tr.SeenAndRecord(1)

			Convey("Then it should be reported as new", func() {
				So(seen, ShouldBeFalse)
			})

			Convey("And recorded again", func() {
				again := tr.SeenAndRecord(1)

				Convey("Then it should be reported as seen", func() {
					So(again, ShouldBeTrue)
					So(tr.SeenAndRecord(2), ShouldBeFalse)
				})
			})
		})

		Convey("When many goroutines record overlapping keys", func() {
			var (
				wg    sync.WaitGroup
				fresh atomic.Int64
			)
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := int64(0); i < 100; i++ {
						if !tr.SeenAndRecord(i) {
							fresh.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then every key should be recorded exactly once", func() {
				So(fresh.Load(), ShouldEqual, int64(100))
				So(tr.SeenAndRecord(99), ShouldBeTrue)
			})
		})
	})
}

type rec struct {
	id    int64
	hasID bool
	v     string
}

func TestFirstSeen(t *testing.T) {
	Convey("Given a batch with duplicate ids", t, func() {
		items := []rec{
			{1, true, "first"},
			{2, true, "a"},
			{1, true, "second"},
			{0, false, "no-id"},
			{0, false, "no-id-2"},
			{2, true, "b"},
		}
		key := func(r rec) (int64, bool) { return r.id, r.hasID }

		Convey("When keeping first-seen records", func() {
			out, dropped := dedupe.FirstSeen(items, key)

			Convey("Then the first occurrence of every id should win", func() {
				So(dropped, ShouldEqual, 2)
				So(out, ShouldHaveLength, 4)
				So(out[0].v, ShouldEqual, "first")
				So(out[1].v, ShouldEqual, "a")
			})

			Convey("Then keyless records should pass through", func() {
				So(out[2].v, ShouldEqual, "no-id")
				So(out[3].v, ShouldEqual, "no-id-2")
			})
		})

		Convey("When the batch is large", func() {
			var big []rec
			for i := 0; i < 1000; i++ {
				big = append(big, rec{int64(i % 10), true, fmt.Sprint(i)})
			}
			out, dropped := dedupe.FirstSeen(big, key)

			Convey("Then only one record per id should remain, in input order", func() {
				So(out, ShouldHaveLength, 10)
				So(dropped, ShouldEqual, 990)
				for i, r := range out {
					So(r.v, ShouldEqual, fmt.Sprint(i))
				}
			})
		})
	})
}
