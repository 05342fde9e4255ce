package monitor

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teranos/nanoprobe/errors"
)

// Schedule decides when a successful check runs next
type Schedule interface {
	// Next returns the next run time after t. The zero time means never again.
	Next(t time.Time) time.Time
	String() string
}

type every time.Duration

// Every repeats at a fixed interval measured from the end of the previous run
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic(errors.AssertionFailedf("repeat interval must be positive, got %s", d))
	}
	return every(d)
}

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }
func (e every) String() string             { return "every " + time.Duration(e).String() }

type cronSchedule struct {
	spec  string
	sched cron.Schedule
}

// Cron parses a standard five-field cron expression (or a descriptor like "@hourly")
func Cron(spec string) (Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", spec)
	}
	return cronSchedule{spec: spec, sched: sched}, nil
}

func (c cronSchedule) Next(t time.Time) time.Time { return c.sched.Next(t) }
func (c cronSchedule) String() string             { return "cron " + c.spec }

type once struct{}

// Once runs the check a single time
func Once() Schedule { return once{} }

func (once) Next(time.Time) time.Time { return time.Time{} }
func (once) String() string           { return "once" }
