package dunning

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Settings is the flat key/value configuration store the engine reads
// schedules and the company profile from. Implemented by db.SettingsStore.
type Settings interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetDefault(ctx context.Context, key, value string) error
}

// Schedule drives the minute trigger for one stage. OffsetDays is negative
// for stage 1 (days before the due date) and the minimum days overdue for
// stages 2-5. Weekdays holds ISO weekday numbers (1=Mon .. 7=Sun).
type Schedule struct {
	OffsetDays int
	At         string // HH:MM, exact-match against the current minute
	Weekdays   map[int]bool
	Enabled    bool
}

// ActiveOn reports whether the schedule fires on the given ISO weekday.
func (s Schedule) ActiveOn(isoWeekday int) bool {
	return s.Weekdays[isoWeekday]
}

type scheduleDefault struct {
	offsetDays string
	at         string
	weekdays   string
	enabled    string
}

var defaultSchedules = map[db.Stage]scheduleDefault{
	db.StagePreDue:       {"-3", "09:00", "1,2,3,4,5", "tak"},
	db.StageReminder:     {"1", "09:00", "1,2,3,4,5", "tak"},
	db.StageDemand:       {"7", "10:00", "1,3,5", "tak"},
	db.StageFormalNotice: {"14", "10:00", "1,3", "tak"},
	db.StageFinalNotice:  {"30", "11:00", "2,4", "tak"},
}

// ScheduleStore reads and writes per-stage schedules in the settings table.
type ScheduleStore struct {
	settings Settings
}

// NewScheduleStore creates a schedule store over the given settings.
func NewScheduleStore(settings Settings) *ScheduleStore {
	return &ScheduleStore{settings: settings}
}

func scheduleKey(stage db.Stage, field string) string {
	return fmt.Sprintf("harmonogram_etap_%d_%s", stage, field)
}

// Get returns the schedule for a stage, falling back to safe defaults for
// absent keys (offset 0, 09:00, weekdays, disabled).
func (s *ScheduleStore) Get(ctx context.Context, stage db.Stage) (Schedule, error) {
	if !stage.Valid() {
		return Schedule{}, fmt.Errorf("invalid stage %d", stage)
	}

	offsetStr, err := s.settings.Get(ctx, scheduleKey(stage, "dzien_aktywacji"), "0")
	if err != nil {
		return Schedule{}, err
	}
	offset, err := strconv.Atoi(strings.TrimSpace(offsetStr))
	if err != nil {
		return Schedule{}, fmt.Errorf("stage %d activation offset %q: %w", stage, offsetStr, err)
	}

	at, err := s.settings.Get(ctx, scheduleKey(stage, "godzina"), "09:00")
	if err != nil {
		return Schedule{}, err
	}

	daysStr, err := s.settings.Get(ctx, scheduleKey(stage, "dni_tygodnia"), "1,2,3,4,5")
	if err != nil {
		return Schedule{}, err
	}
	weekdays := make(map[int]bool)
	for _, part := range strings.Split(daysStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 1 || d > 7 {
			continue
		}
		weekdays[d] = true
	}

	enabled, err := s.settings.Get(ctx, scheduleKey(stage, "aktywny"), "nie")
	if err != nil {
		return Schedule{}, err
	}

	return Schedule{
		OffsetDays: offset,
		At:         at,
		Weekdays:   weekdays,
		Enabled:    enabled == "tak",
	}, nil
}

// Save persists the schedule for a stage.
func (s *ScheduleStore) Save(ctx context.Context, stage db.Stage, sched Schedule) error {
	if !stage.Valid() {
		return fmt.Errorf("invalid stage %d", stage)
	}

	days := make([]string, 0, len(sched.Weekdays))
	for d := 1; d <= 7; d++ {
		if sched.Weekdays[d] {
			days = append(days, strconv.Itoa(d))
		}
	}
	enabled := "nie"
	if sched.Enabled {
		enabled = "tak"
	}

	pairs := map[string]string{
		scheduleKey(stage, "dzien_aktywacji"): strconv.Itoa(sched.OffsetDays),
		scheduleKey(stage, "godzina"):         sched.At,
		scheduleKey(stage, "dni_tygodnia"):    strings.Join(days, ","),
		scheduleKey(stage, "aktywny"):         enabled,
	}
	for key, val := range pairs {
		if err := s.settings.Set(ctx, key, val); err != nil {
			return err
		}
	}
	return nil
}

// Seed writes the default schedule for every stage, keeping any values the
// user already changed.
func (s *ScheduleStore) Seed(ctx context.Context) error {
	for _, stage := range db.Stages() {
		def := defaultSchedules[stage]
		pairs := map[string]string{
			scheduleKey(stage, "dzien_aktywacji"): def.offsetDays,
			scheduleKey(stage, "godzina"):         def.at,
			scheduleKey(stage, "dni_tygodnia"):    def.weekdays,
			scheduleKey(stage, "aktywny"):         def.enabled,
		}
		for key, val := range pairs {
			if err := s.settings.SetDefault(ctx, key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// NextConfiguredStage returns the smallest stage number greater than stage
// within the fixed stage set, or 0 when stage is the highest.
func NextConfiguredStage(stage db.Stage) db.Stage {
	for _, s := range db.Stages() {
		if s > stage {
			return s
		}
	}
	return 0
}
