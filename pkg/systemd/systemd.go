// Package systemd speaks the sd_notify protocol so a Type=notify unit knows
// when the scheduler is ready and that its tick loop is still alive.
//
// Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

func notify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

// Ready reports startup completion.
func Ready() (bool, error) { return notify(daemon.SdNotifyReady) }

// Stopping reports that shutdown has begun.
func Stopping() (bool, error) { return notify(daemon.SdNotifyStopping) }

// Reloading reports a config reload in progress; call Ready when done.
func Reloading() (bool, error) { return notify(daemon.SdNotifyReloading) }

// Watchdog pings the service watchdog.
func Watchdog() (bool, error) { return notify(daemon.SdNotifyWatchdog) }

// Status sets the free-form status line shown by systemctl status.
func Status(s string) (bool, error) { return notify("STATUS=" + s) }

// WatchdogInterval returns WatchdogSec for this process, or 0 if the
// watchdog is disabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
