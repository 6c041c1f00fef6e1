package ics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"cyclical/internal/atomicfile"
	"cyclical/internal/calendar"
	"cyclical/internal/marker"
)

const (
	// MarkerCategory tags VEVENTs that encode day markers.
	MarkerCategory = "CYCLICAL-MARKER"
	// DefaultProdID is the PRODID of exported calendars.
	DefaultProdID = "-//Cyclical//Markers//EN"

	propCount = ical.ComponentProperty("X-CYCLICAL-COUNT")
	propIndex = ical.ComponentProperty("X-CYCLICAL-INDEX")
)

// markerNamespace seeds deterministic UIDs so re-exports of the same
// marker keep the same identity in subscribing clients.
var markerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:cyclical:marker"))

// EncodeMarkers writes snap as an iCalendar document: one all-day VEVENT
// per run of equal consecutive tags on a day, with the run length in
// X-CYCLICAL-COUNT and its position in X-CYCLICAL-INDEX, so a day's tag
// order survives DecodeMarkers.
func EncodeMarkers(w io.Writer, snap marker.Snapshot, prodID string) error {
	if prodID == "" {
		prodID = DefaultProdID
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	stamp := time.Now().UTC()
	for _, day := range snap.Days() {
		for i, r := range tagRuns(snap[day]) {
			ev := cal.AddEvent(markerUID(day, i, r.tag))
			ev.SetDtStampTime(stamp)
			start := day.In(time.UTC)
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
			ev.SetSummary(r.tag)
			ev.SetProperty(ical.ComponentPropertyCategories, MarkerCategory)
			ev.SetProperty(propCount, strconv.Itoa(r.count))
			ev.SetProperty(propIndex, strconv.Itoa(i))
		}
	}
	return cal.SerializeTo(w)
}

// DecodeMarkers reads a document written by EncodeMarkers. VEVENTs not in
// MarkerCategory are ignored.
func DecodeMarkers(r io.Reader) (marker.Snapshot, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, err
	}

	runs := make(map[calendar.Day][]indexedRun)
	for _, ev := range cal.Events() {
		cat := ev.GetProperty(ical.ComponentPropertyCategories)
		if cat == nil || !strings.EqualFold(cat.Value, MarkerCategory) {
			continue
		}
		sum := ev.GetProperty(ical.ComponentPropertySummary)
		if sum == nil || sum.Value == "" {
			continue
		}
		start, err := ev.GetAllDayStartAt()
		if err != nil {
			return nil, err
		}
		day := calendar.DayOf(start)

		ir := indexedRun{index: len(runs[day]), run: run{tag: sum.Value, count: 1}}
		if p := ev.GetProperty(propCount); p != nil {
			if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil && n > 0 {
				ir.count = n
			}
		}
		// Without an index the run keeps its file position.
		if p := ev.GetProperty(propIndex); p != nil {
			if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil && n >= 0 {
				ir.index = n
			}
		}
		runs[day] = append(runs[day], ir)
	}

	snap := make(marker.Snapshot, len(runs))
	for day, list := range runs {
		sort.SliceStable(list, func(i, j int) bool { return list[i].index < list[j].index })
		for _, ir := range list {
			for i := 0; i < ir.count; i++ {
				snap[day] = append(snap[day], ir.tag)
			}
		}
	}
	return snap, nil
}

// FilePersister keeps markers in an ICS file. It satisfies
// marker.Persister.
type FilePersister struct {
	Path string
}

func (p FilePersister) Load(_ context.Context) (marker.Snapshot, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return marker.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeMarkers(bytes.NewReader(data))
}

func (p FilePersister) Save(_ context.Context, snap marker.Snapshot) error {
	if p.Path == "" {
		return errors.New("ics: persister path is empty")
	}
	var buf bytes.Buffer
	if err := EncodeMarkers(&buf, snap, DefaultProdID); err != nil {
		return err
	}
	return atomicfile.Write(p.Path, buf.Bytes(), ".cyclical-markers-*.tmp")
}

func markerUID(day calendar.Day, index int, tag string) string {
	name := day.String() + "/" + strconv.Itoa(index) + "/" + tag
	return uuid.NewSHA1(markerNamespace, []byte(name)).String() + "@cyclical"
}

// run is a stretch of equal consecutive tags.
type run struct {
	tag   string
	count int
}

type indexedRun struct {
	index int
	run
}

func tagRuns(list []string) []run {
	var out []run
	for _, t := range list {
		if n := len(out); n > 0 && out[n-1].tag == t {
			out[n-1].count++
			continue
		}
		out = append(out, run{tag: t, count: 1})
	}
	return out
}
