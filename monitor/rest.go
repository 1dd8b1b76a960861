// monitor/rest.go
package monitor

import (
	"time"

	"pivot_curve_bot/logs"
)

// Stepper advances the bot by one market observation.
type Stepper interface {
	Step() error
}

// Start runs the main loop of the monitor until stopChan is closed.
func Start(stepper Stepper, interval, heartbeatInterval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastHeartbeat := time.Now()
	steps, failures := 0, 0

	for {
		select {
		case <-stopChan:
			logs.Info("Monitor received stop signal, exiting.")
			return
		case <-ticker.C:
			steps++
			if err := stepper.Step(); err != nil {
				failures++
				logs.Errorf("[Monitor-Error] Step failed: %v", err)
			}

			if time.Since(lastHeartbeat) >= heartbeatInterval {
				logs.Infof("[Heartbeat] Monitor service still running... %d steps, %d failed since last heartbeat.", steps, failures)
				lastHeartbeat = time.Now()
				steps, failures = 0, 0
			}
		}
	}
}
