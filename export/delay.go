package export

import (
	"sync"
	"time"
)

// delayExecutor runs scheduled export work on a single goroutine, one per
// process (spec §4.5 step 3: "only one delay executor exists per
// process"). A small worker owning its own state behind a channel, rather
// than reaching for a third-party job queue for something this narrow.
type delayExecutor struct {
	tasks chan func()
	once  sync.Once
}

var sharedDelayExecutor = &delayExecutor{tasks: make(chan func(), 64)}

func (e *delayExecutor) start() {
	e.once.Do(func() {
		go func() {
			for task := range e.tasks {
				task()
			}
		}()
	})
}

// Schedule runs fn on the shared delay executor's single worker goroutine
// after delay has elapsed.
func (e *delayExecutor) Schedule(delay time.Duration, fn func()) {
	e.start()
	time.AfterFunc(delay, func() {
		e.tasks <- fn
	})
}
