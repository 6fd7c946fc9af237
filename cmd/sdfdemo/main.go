// Command sdfdemo builds a small physics scene, simulates it and writes the
// last frame as a PNG. With -stream it serves the frames and body states to
// WebSocket viewers while the simulation runs.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene"
	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/internal/stream"
	"github.com/gogpu/sdfscene/physics"
	"github.com/gogpu/sdfscene/scene"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		width      = flag.Int("width", 0, "image width")
		height     = flag.Int("height", 0, "image height")
		output     = flag.String("output", "", "output file")
		frames     = flag.Int("frames", 0, "physics steps to run")
		mode       = flag.String("mode", "", "render mode: pbr, color or distance")
		backend    = flag.String("backend", "", "compute backend: cpu or hal")
		addr       = flag.String("stream", "", "serve frames on this address, e.g. :8080")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *debug {
		sdfscene.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "output":
			cfg.Output = *output
		case "frames":
			cfg.Frames = *frames
		case "mode":
			cfg.Mode = *mode
		case "backend":
			cfg.Backend = *backend
		case "stream":
			cfg.Stream = *addr
		}
	})
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config, configPath string) error {
	objects, timeline := demoScene()
	m, _ := parseMode(cfg.Mode)

	opts := []sdfscene.Option{
		sdfscene.WithWorkers(cfg.Workers),
		sdfscene.WithResolver(timeline),
		sdfscene.WithGravity(mgl32.Vec2{cfg.Physics.Gravity[0], cfg.Physics.Gravity[1]}),
	}
	if cfg.Backend == "hal" {
		opts = append(opts, sdfscene.WithHAL())
	}
	rt, err := sdfscene.New(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cam := scene.Camera{Zoom: 1}
	inst, err := rt.Build(ctx, objects, cam, builder.WithRenderMode(m))
	if err != nil {
		return err
	}
	defer inst.Release()
	world, err := rt.BuildPhysics(ctx, objects, cam, physics.WithCellSize(cfg.Physics.CellSize))
	if err != nil {
		return err
	}
	defer world.Release()

	var hub *stream.Hub
	if cfg.Stream != "" {
		hub = stream.NewHub()
		defer hub.Close()
		srv := &http.Server{Addr: cfg.Stream, Handler: hub, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("stream server: %v", err)
			}
		}()
		defer srv.Close()
		log.Printf("Streaming on ws://%s", cfg.Stream)
	}

	var updates <-chan config
	if hub != nil && configPath != "" {
		if updates, err = watchConfig(ctx, configPath); err != nil {
			return err
		}
	}

	var (
		img  *image.NRGBA
		tick = time.NewTicker(time.Second / time.Duration(cfg.FPS))
	)
	defer tick.Stop()
	for frame := range cfg.Frames {
		select {
		case c, ok := <-updates:
			if ok {
				applyLive(world, c)
			}
		default:
		}
		if err := rt.Step(ctx, world, inst, cam); err != nil {
			return err
		}
		if err := inst.Update(cam, float32(frame)); err != nil {
			return err
		}
		if hub == nil {
			continue
		}
		if img, err = inst.Render(ctx, cam, cfg.Width, cfg.Height, img); err != nil {
			return err
		}
		if err := publish(hub, img, world, float32(frame)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}

	img, err = inst.Render(ctx, cam, cfg.Width, cfg.Height, img)
	if err != nil {
		return err
	}
	if err := savePNG(cfg.Output, img); err != nil {
		return err
	}
	log.Printf("Demo saved to %s (%dx%d, %d steps, %s)", cfg.Output, cfg.Width, cfg.Height, cfg.Frames, rt.Device().Name())
	return nil
}

func publish(hub *stream.Hub, img image.Image, world *physics.Instance, frame float32) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := hub.PublishFrame(buf.Bytes()); err != nil {
		return err
	}
	return hub.PublishState(bodyStates(world, frame))
}

func bodyStates(world *physics.Instance, frame float32) stream.State {
	s := stream.State{Frame: frame}
	if world == nil {
		return s
	}
	for _, o := range world.Bodies() {
		b := stream.BodyState{
			UUID:     o.UUID,
			Name:     o.Name,
			Position: [2]float32{o.Properties.Get("posX"), o.Properties.Get("posY")},
			Rotate:   o.Properties.Get("rotate"),
			Velocity: [2]float32(o.Body.Velocity),
		}
		for _, c := range o.Body.CollisionInfos {
			b.Contacts = append(b.Contacts, c.UUID)
		}
		s.Bodies = append(s.Bodies, b)
	}
	return s
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
