// Package oninterrupt runs registered cleanup handlers when the process
// receives SIGINT or SIGTERM, e.g. to remove staging bind mounts before
// exiting.
package oninterrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu       sync.Mutex
	handlers = make(map[int]func())
	nextID   int
	once     sync.Once
)

func watch() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		// A second signal terminates immediately, in case cleanup hangs.
		signal.Stop(c)
		run()
		if s, ok := sig.(syscall.Signal); ok {
			os.Exit(128 + int(s))
		}
		os.Exit(1)
	}()
}

// run calls all registered handlers, most recently registered first.
func run() {
	mu.Lock()
	defer mu.Unlock()
	for id := nextID - 1; id >= 0; id-- {
		if fn, ok := handlers[id]; ok {
			fn()
			delete(handlers, id)
		}
	}
}

// Register arranges for cb to be called on interrupt. The returned function
// unregisters cb; call it once the resource cb cleans up is gone.
func Register(cb func()) (unregister func()) {
	once.Do(watch)
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handlers[id] = cb
	return func() {
		mu.Lock()
		defer mu.Unlock()
		delete(handlers, id)
	}
}
