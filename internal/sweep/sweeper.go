package sweep

import (
	"sync"
	"time"
)

// Task runs one reaping pass. Tasks must be safe to call at any time.
type Task func(now time.Time)

// Sweeper invokes its tasks on a fixed long interval, independently of client
// traffic.
type Sweeper struct {
	interval time.Duration
	tasks    []Task

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(interval time.Duration, tasks ...Task) *Sweeper {
	return &Sweeper{
		interval: interval,
		tasks:    tasks,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			for _, task := range s.tasks {
				task(now)
			}
		}
	}
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
