// Command voxfield voxelizes a composition into a particle field, animates it
// headless for a number of ticks and exports what the last tick shows.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/soypat/voxfield"
	"github.com/soypat/voxfield/audiolevel"
	"github.com/soypat/voxfield/particle"
	"github.com/soypat/voxfield/voxaux"
)

var (
	paramsFile = flag.String("params", "", "JSON file with composition parameters. Flags override its values")
	shapeName  = flag.String("shape", "", "shape for single mode, one of the names listed by -list")
	resolution = flag.Int("res", 0, "grid cells per axis")
	explode    = flag.Float64("explode", 0, "explode amount in [0,1.5]")
	noise      = flag.Float64("noise", 0, "noise amount in [0,1]")
	speed      = flag.Float64("speed", 1, "animation speed in [0,2]")
	scrambled  = flag.Bool("scramble", false, "drive explode and noise to their maximum")
	ticks      = flag.Int("ticks", 120, "ticks to animate before exporting")
	fps        = flag.Float64("fps", 60, "ticks per second of animation time")
	seed       = flag.Int64("seed", 1, "seed for per-piece random attributes")
	audioFile  = flag.String("audio", "", "WAV file driving the audio level. Enables audio reaction")
	stlOut     = flag.String("o", "voxfield.stl", "STL output file. Empty skips export")
	asciiSTL   = flag.Bool("ascii", false, "write ASCII STL instead of binary")
	pngOut     = flag.String("png", "", "PNG preview output file")
	pngSize    = flag.Int("pngsize", 512, "PNG preview side in pixels")
	listShapes = flag.Bool("list", false, "list shape names and exit")
	silent     = flag.Bool("silent", false, "do not print progress")
	verbose    = flag.Bool("v", false, "log scene events to stderr")
)

func main() {
	flag.Parse()
	if *listShapes {
		for _, k := range voxfield.ShapeKinds() {
			fmt.Println(k)
		}
		return
	}
	err := run()
	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logf := func(args ...any) {
		if !*silent {
			fmt.Println(args...)
		}
	}
	if *verbose {
		voxaux.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	params, err := loadParams()
	if err != nil {
		return err
	}
	var meter *audiolevel.Meter
	if *audioFile != "" {
		fp, err := os.Open(*audioFile)
		if err != nil {
			return err
		}
		window := time.Duration(float64(time.Second) / *fps)
		meter, _, err = audiolevel.NewMeterFromWAV(fp, window)
		if err != nil {
			fp.Close()
			return err
		}
		defer meter.Close()
		params.AudioEnabled = true
	}

	watch := stopwatch()
	scene, err := voxaux.NewScene(context.Background(), params, voxaux.Config{
		Rand: rand.New(rand.NewSource(*seed)),
	})
	if err != nil {
		return err
	}
	stats := scene.Stats()
	logf("built", stats.PieceCount, "pieces at resolution", params.Resolution, "in", watch())

	watch = stopwatch()
	dt := float32(1 / *fps)
	var in particle.Input
	for i := 0; i < *ticks; i++ {
		in.Delta = dt
		in.Elapsed += dt
		if meter != nil {
			in.AudioLevel = meter.Next()
		}
		err = scene.Tick(in)
		if err != nil {
			return err
		}
	}
	stats = scene.Stats()
	logf("animated", *ticks, "ticks in", watch(), "audio level", stats.AudioLevel)

	if *stlOut != "" && stats.PieceCount == 0 {
		logf("no pieces to export, skipping", *stlOut)
	} else if *stlOut != "" {
		err = writeSTL(scene, *stlOut)
		if err != nil {
			return err
		}
	}
	if *pngOut != "" {
		watch = stopwatch()
		fp, err := os.Create(*pngOut)
		if err != nil {
			return err
		}
		defer fp.Close()
		err = voxaux.WritePreviewPNG(fp, scene, voxaux.PreviewConfig{Width: *pngSize, Height: *pngSize})
		if err != nil {
			return fmt.Errorf("writing preview: %w", err)
		}
		logf("wrote", *pngOut, "in", watch())
	}
	return nil
}

func writeSTL(scene *voxaux.Scene, filename string) error {
	watch := stopwatch()
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	w := bufio.NewWriter(fp)
	format := voxaux.BinarySTL
	if *asciiSTL {
		format = voxaux.ASCIISTL
	}
	n, err := scene.Export(w, format)
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	err = w.Flush()
	if err != nil {
		return err
	}
	if !*silent {
		fmt.Println("wrote", filename, n, "bytes in", watch())
	}
	return nil
}

// loadParams starts from defaults, applies the JSON file if any and then any flags set explicitly.
func loadParams() (voxfield.CompositionParams, error) {
	params := voxfield.DefaultParams()
	if *paramsFile != "" {
		b, err := os.ReadFile(*paramsFile)
		if err != nil {
			return params, err
		}
		err = json.Unmarshal(b, &params)
		if err != nil {
			return params, fmt.Errorf("parsing %s: %w", *paramsFile, err)
		}
	}
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shape":
			params.Mode = voxfield.Single
			params.Shape, err = voxfield.ParseShapeKind(*shapeName)
		case "res":
			params.Resolution = *resolution
		case "explode":
			params.Explode = float32(*explode)
		case "noise":
			params.Noise = float32(*noise)
		case "speed":
			params.Speed = float32(*speed)
		case "scramble":
			params.IsScrambled = *scrambled
		}
	})
	if err != nil {
		return params, err
	}
	return params, params.Validate()
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
