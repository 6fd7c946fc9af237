package main

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene/physics"
)

// watchConfig reloads the config at path after every write and delivers the
// valid results. The channel is closed when ctx ends.
func watchConfig(ctx context.Context, path string) (<-chan config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan config, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				c, err := loadConfig(path)
				if err != nil {
					log.Printf("Ignoring config change: %v", err)
					continue
				}
				// Keep only the latest pending config.
				select {
				case <-out:
				default:
				}
				out <- c
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("Config watcher: %v", err)
			}
		}
	}()
	return out, nil
}

// applyLive copies the settings that can change while running into world.
func applyLive(world *physics.Instance, c config) {
	if world == nil {
		return
	}
	g := mgl32.Vec2{c.Physics.Gravity[0], c.Physics.Gravity[1]}
	for _, o := range world.Bodies() {
		o.Body.Gravity = g
	}
	log.Printf("Config reloaded: gravity %v", g)
}
