package wsrouter

import "time"

// startHeartbeatWatcher runs until the connection closes. It sends a
// server-initiated __heartbeat probe every Config.Heartbeat.IntervalMs (when
// set) and closes the connection with code 1001 if no activity is observed
// within Config.Heartbeat.TimeoutMs (when set). Per-connection timers keep
// close latency tight compared to a manager-wide periodic scan.
func (r *Router) startHeartbeatWatcher(conn *connection) {
	interval := msDuration(r.config.Heartbeat.IntervalMs)
	timeout := msDuration(r.config.Heartbeat.TimeoutMs)
	if interval <= 0 && timeout <= 0 {
		return
	}

	tick := timeout
	if interval > 0 && (tick <= 0 || interval < tick) {
		tick = interval
	}
	tick /= 2
	if tick <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		lastProbeAt := time.Now()
		for range ticker.C {
			if conn.closed.Load() {
				return
			}
			if timeout > 0 && conn.idleSince() >= timeout {
				_ = conn.transport.Close(1001, "heartbeat timeout")
				return
			}
			if interval > 0 && time.Since(lastProbeAt) >= interval {
				r.sendHeartbeatProbe(conn)
				lastProbeAt = time.Now()
			}
		}
	}()
}

// sendHeartbeatProbe emits a server-initiated __heartbeat frame, the same
// system type a client sends, so any __heartbeat-aware client answers it
// like its own probe and resets the idle clock.
func (r *Router) sendHeartbeatProbe(conn *connection) {
	frame := outboundFrame{
		Type: "__heartbeat",
		Meta: map[string]any{"ts": time.Now().UnixMilli()},
	}
	body, err := r.config.Codec.Marshal(frame)
	if err != nil {
		return
	}
	_ = conn.transport.Send(body)
}
