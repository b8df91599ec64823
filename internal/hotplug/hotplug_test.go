package hotplug

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCPUList(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-2,5,7-8\n", []int{0, 1, 2, 5, 7, 8}},
	} {
		got, err := ParseCPUList(tc.in)
		if err != nil {
			t.Fatalf("ParseCPUList(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseCPUList(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseCPUListRejectsGarbage(t *testing.T) {
	for _, in := range []string{"x", "1-", "3-1", "1,,2"} {
		if _, err := ParseCPUList(in); err == nil {
			t.Errorf("ParseCPUList(%q) succeeded", in)
		}
	}
}

// writeSysfsTree lays out a fake cpu sysfs tree. CPU 0 has no online file,
// like the boot CPU on most systems.
func writeSysfsTree(t *testing.T, cpus int) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "possible"), []byte(fmt.Sprintf("0-%d\n", cpus-1)), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "online"), []byte(fmt.Sprintf("0-%d\n", cpus-1)), 0o644); err != nil {
		t.Fatal(err)
	}
	for cpu := 0; cpu < cpus; cpu++ {
		dir := filepath.Join(root, fmt.Sprintf("cpu%d", cpu))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if cpu > 0 {
			if err := os.WriteFile(filepath.Join(dir, "online"), []byte("1\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestSysfs(t *testing.T) {
	s := Sysfs{Root: writeSysfsTree(t, 4)}

	if got := s.PossibleCPUs(); got != 4 {
		t.Fatalf("PossibleCPUs: got %d, want 4", got)
	}
	online, err := s.OnlineCPUs()
	if err != nil {
		t.Fatalf("OnlineCPUs: %v", err)
	}
	if !reflect.DeepEqual(online, []int{0, 1, 2, 3}) {
		t.Fatalf("OnlineCPUs: got %v", online)
	}

	if err := s.SetOnline(2, false); err != nil {
		t.Fatalf("SetOnline(2, false): %v", err)
	}
	on, err := s.IsOnline(2)
	if err != nil {
		t.Fatalf("IsOnline(2): %v", err)
	}
	if on {
		t.Fatal("cpu2 still reported online")
	}

	// The boot CPU exposes no control file: online, not unpluggable.
	on, err = s.IsOnline(0)
	if err != nil {
		t.Fatalf("IsOnline(0): %v", err)
	}
	if !on {
		t.Fatal("cpu0 reported offline")
	}
	if err := s.SetOnline(0, false); err == nil {
		t.Fatal("SetOnline(0, false) succeeded without a control file")
	}

	// Absent CPUs are just offline.
	on, err = s.IsOnline(17)
	if err != nil {
		t.Fatalf("IsOnline(17): %v", err)
	}
	if on {
		t.Fatal("absent cpu17 reported online")
	}
}

func TestTrackerOfflineAndRestore(t *testing.T) {
	sim := NewSim(4)
	tr := NewTracker(sim)

	recorded, err := tr.OfflineAndRecord(3)
	if err != nil {
		t.Fatalf("OfflineAndRecord(3): %v", err)
	}
	if !recorded {
		t.Fatal("online cpu3 not recorded")
	}

	// A CPU that is already offline is left alone.
	recorded, err = tr.OfflineAndRecord(3)
	if err != nil {
		t.Fatalf("second OfflineAndRecord(3): %v", err)
	}
	if recorded {
		t.Fatal("already-offline cpu3 recorded twice")
	}

	if got := tr.Offlined(); !reflect.DeepEqual(got, []int{3}) {
		t.Fatalf("Offlined: got %v, want [3]", got)
	}

	tr.RestoreAll()
	if len(tr.Offlined()) != 0 {
		t.Fatalf("Offlined after RestoreAll: %v", tr.Offlined())
	}
	on, _ := sim.IsOnline(3)
	if !on {
		t.Fatal("cpu3 not restored")
	}
}

func TestTrackerOfflineFailure(t *testing.T) {
	sim := NewSim(4)
	sim.FailOffline = map[int]bool{2: true}
	tr := NewTracker(sim)

	if _, err := tr.OfflineAndRecord(2); err == nil {
		t.Fatal("OfflineAndRecord(2) succeeded despite platform failure")
	}
	if len(tr.Offlined()) != 0 {
		t.Fatalf("failed offline left a record: %v", tr.Offlined())
	}
}

func TestTrackerRollback(t *testing.T) {
	sim := NewSim(4)
	tr := NewTracker(sim)

	for _, cpu := range []int{1, 2} {
		if _, err := tr.OfflineAndRecord(cpu); err != nil {
			t.Fatalf("OfflineAndRecord(%d): %v", cpu, err)
		}
	}

	// Roll back only this call's CPUs; CPU 3 was never touched.
	tr.Rollback([]int{1, 2, 3})
	if len(tr.Offlined()) != 0 {
		t.Fatalf("Offlined after rollback: %v", tr.Offlined())
	}
	for _, cpu := range []int{1, 2} {
		on, _ := sim.IsOnline(cpu)
		if !on {
			t.Fatalf("cpu%d not rolled back", cpu)
		}
	}
}

func TestTrackerRestoreContinuesPastFailures(t *testing.T) {
	sim := NewSim(4)
	sim.FailOnline = map[int]bool{1: true}
	tr := NewTracker(sim)

	for _, cpu := range []int{1, 2} {
		if _, err := tr.OfflineAndRecord(cpu); err != nil {
			t.Fatalf("OfflineAndRecord(%d): %v", cpu, err)
		}
	}

	// cpu1 refuses to come back; the restore still finishes and clears
	// the record.
	tr.RestoreAll()
	if len(tr.Offlined()) != 0 {
		t.Fatalf("Offlined after RestoreAll: %v", tr.Offlined())
	}
	on, _ := sim.IsOnline(2)
	if !on {
		t.Fatal("cpu2 not restored after cpu1 failure")
	}
}
