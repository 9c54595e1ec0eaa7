// Package schedule fires periodic status requests from a cron spec.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "afkmon/pkg/logx"
)

var (
	parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)
)

// Normalize turns a schedule string into a cron spec. Accepted forms are
// cron expressions and descriptors ("*/10 * * * *", "@hourly",
// "@every 10m"), Go durations ("15m") and HH:MM intervals ("01:30").
// An empty spec disables the schedule and normalizes to "".
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	if !strings.HasPrefix(s, "@") && !strings.ContainsAny(s, " \t") {
		d, err := interval(s)
		if err != nil {
			return "", err
		}
		s = "@every " + d.String()
	}
	if _, err := parser.Parse(s); err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return s, nil
}

func interval(s string) (time.Duration, error) {
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid schedule %q (use cron like '*/10 * * * *', HH:MM or a duration like '15m')", s)
		}
	}
	if d < time.Minute {
		return 0, fmt.Errorf("schedule interval %s is below one minute", d)
	}
	return d, nil
}

// Scheduler emits on C at each activation of the current spec. Ticks are
// coalesced: a consumer that falls behind sees one pending request.
type Scheduler struct {
	log logx.Logger
	loc *time.Location

	mu   sync.Mutex
	spec string
	c    *cron.Cron
	out  chan time.Time
}

func New(loc *time.Location, log logx.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{loc: loc, log: log.With(logx.String("comp", "schedule")), out: make(chan time.Time, 1)}
}

// C delivers status requests.
func (s *Scheduler) C() <-chan time.Time { return s.out }

// Spec returns the active normalized spec.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Apply replaces the running schedule. An unchanged spec is a no-op; an
// empty spec stops it.
func (s *Scheduler) Apply(raw string) error {
	spec, err := Normalize(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec && (s.c != nil || spec == "") {
		return nil
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	s.spec = spec
	if spec == "" {
		s.log.Debug("status schedule disabled")
		return nil
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(spec, s.fire); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("status schedule set", logx.String("spec", spec))
	return nil
}

func (s *Scheduler) fire() {
	select {
	case s.out <- time.Now():
	default:
	}
}

// Stop halts the schedule. Pending requests stay readable.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.spec = ""
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
