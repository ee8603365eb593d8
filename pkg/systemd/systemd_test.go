package systemd

import "testing"

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	for name, fn := range map[string]func() (bool, error){
		"ready":    Ready,
		"stopping": Stopping,
		"watchdog": Watchdog,
	} {
		sent, err := fn()
		if err != nil || sent {
			t.Fatalf("%s: sent=%v err=%v, want no-op", name, sent, err)
		}
	}
	if d := WatchdogInterval(); d != 0 {
		t.Fatalf("WatchdogInterval = %v, want 0", d)
	}
}
