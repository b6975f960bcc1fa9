package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServerPort != "4000" {
		t.Errorf("ServerPort = %s, want 4000", cfg.ServerPort)
	}
	if cfg.PollInterval != 900*time.Second {
		t.Errorf("PollInterval = %v, want 900s", cfg.PollInterval)
	}
	if !cfg.CachedOnly {
		t.Error("CachedOnly must default to true")
	}
	if cfg.ForceRefreshStaleness != 60*time.Second {
		t.Errorf("ForceRefreshStaleness = %v, want 60s", cfg.ForceRefreshStaleness)
	}
	want := []TimeOfDay{{Hour: 0, Minute: 30}, {Hour: 12, Minute: 30}}
	if len(cfg.BackfillTimes) != len(want) {
		t.Fatalf("BackfillTimes = %v, want %v", cfg.BackfillTimes, want)
	}
	for i, tod := range want {
		if cfg.BackfillTimes[i] != tod {
			t.Errorf("BackfillTimes[%d] = %v, want %v", i, cfg.BackfillTimes[i], tod)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("POLL_INTERVAL", "300s")
	t.Setenv("CACHED_ONLY", "false")
	t.Setenv("BACKFILL_TIMES", "06:00")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %s, want 8080", cfg.ServerPort)
	}
	if cfg.PollInterval != 300*time.Second {
		t.Errorf("PollInterval = %v, want 300s", cfg.PollInterval)
	}
	if cfg.CachedOnly {
		t.Error("CachedOnly override not applied")
	}
	if len(cfg.BackfillTimes) != 1 || cfg.BackfillTimes[0] != (TimeOfDay{Hour: 6, Minute: 0}) {
		t.Errorf("BackfillTimes = %v, want [06:00]", cfg.BackfillTimes)
	}
}

func TestLoadRejectsBadBackfillTimes(t *testing.T) {
	t.Setenv("BACKFILL_TIMES", "25:00")
	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range hour")
	}
}

func TestParseTimesOfDay(t *testing.T) {
	times, err := parseTimesOfDay(" 00:30 , 12:30 ")
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != 2 || times[0] != (TimeOfDay{0, 30}) || times[1] != (TimeOfDay{12, 30}) {
		t.Errorf("unexpected times: %v", times)
	}

	for _, bad := range []string{"", "0030", "aa:30", "12:xx", "12:60"} {
		if _, err := parseTimesOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTimeOfDayNext(t *testing.T) {
	tod := TimeOfDay{Hour: 12, Minute: 30}

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	if got := tod.Next(now); !got.Equal(time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Next before the slot = %v", got)
	}

	// 恰好处于该时刻时取次日
	now = time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	if got := tod.Next(now); !got.Equal(time.Date(2024, 3, 11, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Next at the slot = %v", got)
	}

	now = time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)
	if got := tod.Next(now); !got.Equal(time.Date(2024, 3, 11, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Next after the slot = %v", got)
	}
}
