// Package systemd reports service state to systemd through sd_notify.
//
// Outside a systemd unit (NOTIFY_SOCKET unset) every call is a no-op.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "releasewatch/pkg/logx"
)

type Notifier struct {
	log      logx.Logger
	watchdog time.Duration
}

func NewNotifier(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{log: log.With(logx.String("comp", "systemd"))}
	if d, err := daemon.SdWatchdogEnabled(false); err != nil {
		n.log.Warn("invalid watchdog settings", logx.Err(err))
	} else {
		n.watchdog = d
	}
	return n
}

// WatchdogInterval is the ping period (half the unit's WatchdogSec), or 0
// when the watchdog is disabled.
func (n *Notifier) WatchdogInterval() time.Duration {
	if n == nil {
		return 0
	}
	return n.watchdog / 2
}

func (n *Notifier) Ready()          { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping()       { n.send(daemon.SdNotifyStopping) }
func (n *Notifier) Watchdog()       { n.send(daemon.SdNotifyWatchdog) }
func (n *Notifier) Status(s string) { n.send("STATUS=" + s) }

func (n *Notifier) send(state string) {
	if n == nil {
		return
	}
	if _, err := daemon.SdNotify(false, state); err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}
