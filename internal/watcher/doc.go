// Package watcher runs retirement sweeps on a schedule.
//
// A Watcher drives a gocron job that calls the supplied sweep function every
// interval. Jobs run in singleton mode, so a slow sweep delays the next one
// rather than overlapping it. When a config path is given the file is
// watched with fsnotify and Run returns ErrConfigChanged after it is edited.
//
// The daemon helpers re-exec the binary in its own session and track it
// through a PID file:
//
//	pid, err := watcher.StartDaemon(pidFile, logFile, nil, "watch", "--daemon-child")
//	...
//	// in the child
//	w, err := watcher.New(watcher.Config{Sweep: sweep, Interval: time.Hour})
//	...
//	err = w.RunDaemon(ctx, pidFile)
package watcher
