package numfmt

import (
	"math"
	"time"
)

var (
	epoch1900 = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const msPerDay = 24 * 60 * 60 * 1000

// SerialToTime converts a date serial to a time in UTC, rounded to the
// millisecond. In the 1900 system serial 60 is Lotus' phantom 1900-02-29;
// it maps to 1900-02-28 here.
func SerialToTime(v float64, date1904 bool) time.Time {
	days := math.Floor(v)
	ms := int64(math.Round((v - days) * msPerDay))
	if ms >= msPerDay {
		days++
		ms -= msPerDay
	}

	base := epoch1904
	if !date1904 {
		base = epoch1900
		if v < 60 {
			days++
		}
	}
	return base.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond)
}

// TimeToSerial converts t to a date serial. The wall clock of t is used as
// is; no time zone conversion happens.
func TimeToSerial(t time.Time, date1904 bool) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	base := epoch1900
	if date1904 {
		base = epoch1904
	}

	ms := (wall.Unix()-base.Unix())*1000 + int64(wall.Nanosecond()/int(time.Millisecond))
	v := float64(ms) / msPerDay
	if !date1904 && v < 61 {
		v--
	}
	return v
}
