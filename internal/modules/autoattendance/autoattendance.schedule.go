package autoattendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next firing time strictly after t.
// robfig/cron schedules satisfy it directly.
type Schedule interface {
	Next(t time.Time) time.Time
}

// DailyAt fires once a day at Hour:Minute in Location.
type DailyAt struct {
	Hour     int
	Minute   int
	Location *time.Location
}

func (d DailyAt) Next(t time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

func (d DailyAt) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts "HH:MM" or a five-field cron expression such as
// "1 0 * * *". Both are evaluated in loc.
func ParseSchedule(expr string, loc *time.Location) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ConfigurationError(nil, "auto-attendance schedule is empty")
	}
	if loc == nil {
		loc = time.Local
	}

	if at, err := time.Parse("15:04", expr); err == nil {
		return DailyAt{Hour: at.Hour(), Minute: at.Minute(), Location: loc}, nil
	}

	line := expr
	if loc != time.Local && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		line = "CRON_TZ=" + loc.String() + " " + expr
	}
	sched, err := cronParser.Parse(line)
	if err != nil {
		return nil, ConfigurationError(err, fmt.Sprintf("invalid auto-attendance schedule %q", expr))
	}
	return sched, nil
}

// LoadLocation resolves the configured job time zone; "" and "Local" mean the
// process zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ConfigurationError(err, fmt.Sprintf("unknown time zone %q", name))
	}
	return loc, nil
}
