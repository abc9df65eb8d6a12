package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/catalog"
	"github.com/danmuck/kiroshi/internal/history"
	"github.com/danmuck/kiroshi/internal/imagegen"
	logs "github.com/danmuck/kiroshi/internal/logging"
)

type generateFlags struct {
	config       string
	model        string
	prompt       string
	negative     string
	width        uint32
	height       uint32
	steps        uint32
	seed         uint64
	quality      string
	sampler      string
	faceDetail   bool
	handDetail   bool
	loras        []string
	upscaler     string
	tileSize     uint32
	tilePadding  uint32
	inpaints     []string
	previewAfter float32
	output       string
	raw          bool
}

func runGenerate(args []string, out io.Writer) error {
	var f generateFlags
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	addConfigFlag(fs, &f.config)
	fs.StringVarP(&f.model, "model", "m", "", "model name (file stem under models_dir)")
	fs.StringVarP(&f.prompt, "prompt", "p", "", "prompt")
	fs.StringVarP(&f.negative, "negative", "n", "", "negative prompt")
	fs.Uint32Var(&f.width, "width", imagegen.DefaultSize.Width, "output width")
	fs.Uint32Var(&f.height, "height", imagegen.DefaultSize.Height, "output height")
	fs.Uint32Var(&f.steps, "steps", uint32(imagegen.DefaultSteps), "sampling steps")
	fs.Uint64Var(&f.seed, "seed", 0, "seed (default: random)")
	fs.StringVar(&f.quality, "quality", imagegen.High.String(), "low|normal|high|ultra|insane")
	fs.StringVar(&f.sampler, "sampler", "euler_a", "euler_a|dpm++_sde_karras|dpm++_2m_karras|dpm++_2m_sde_karras")
	fs.BoolVar(&f.faceDetail, "face-detail", false, "refine detected faces")
	fs.BoolVar(&f.handDetail, "hand-detail", false, "refine detected hands")
	fs.StringArrayVar(&f.loras, "lora", nil, "lora as file[:strength], repeatable")
	fs.StringVar(&f.upscaler, "upscaler", "", "upscale with 2x-real_esrgan|4x-ultrasharp")
	fs.Uint32Var(&f.tileSize, "tile-size", imagegen.DefaultTileSize, "upscaler tile size in pixels")
	fs.Uint32Var(&f.tilePadding, "tile-padding", imagegen.DefaultTilePadding, "upscaler tile overlap in pixels")
	fs.StringArrayVar(&f.inpaints, "inpaint", nil, "inpaint region as x,y,width,height[:strength], repeatable")
	fs.Float32Var(&f.previewAfter, "preview-after", 0, "fraction of steps after which previews are sent")
	fs.StringVarP(&f.output, "output", "o", "", "PNG output path (default: <session id>.png)")
	fs.BoolVar(&f.raw, "raw", false, "send the prompt without the model's templates")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(f.model) == "" {
		return fmt.Errorf("%w: --model is required", errUsage)
	}

	def, err := f.definition()
	if err != nil {
		return err
	}
	var previewAfter *float32
	if fs.Changed("preview-after") {
		previewAfter = &f.previewAfter
	}

	a, err := newApp(f.config)
	if err != nil {
		return err
	}
	if !f.raw {
		def.Prompt, def.NegativePrompt = a.settings.Get(def.Model).Apply(def.Prompt, def.NegativePrompt)
	}
	if _, ok, err := catalog.FindModel(a.cfg.Backend.ModelsDir, def.Model); err == nil && !ok {
		logs.Warnf("generate.model name=%s not found under %s", def.Model, a.cfg.Backend.ModelsDir)
	}

	ctx, cancel := signalContext()
	defer cancel()

	handle, err := a.startBackend(ctx)
	if err != nil {
		return err
	}
	if handle != nil {
		defer handle.Release()
	}

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	entry, err := generate(ctx, a.client, def, previewAfter, f.output, out)
	if store != nil {
		if herr := store.Create(context.Background(), &entry); herr != nil {
			logs.Warnf("generate.history err=%v", herr)
		}
	}
	return err
}

func (f generateFlags) definition() (imagegen.Definition, error) {
	def := imagegen.NewDefinition(f.model, f.prompt)
	def.NegativePrompt = f.negative
	def.Size = imagegen.Size{Width: f.width, Height: f.height}
	def.Steps = imagegen.Steps(f.steps)
	if f.seed != 0 {
		def.Seed = imagegen.Seed(f.seed)
	}

	quality, err := imagegen.ParseQualityName(f.quality)
	if err != nil {
		return imagegen.Definition{}, err
	}
	def.Quality = quality
	sampler, err := imagegen.ParseSamplerToken(f.sampler)
	if err != nil {
		return imagegen.Definition{}, err
	}
	def.Sampler = sampler

	if f.faceDetail {
		d := imagegen.DefaultDetail()
		def.FaceDetail = &d
	}
	if f.handDetail {
		d := imagegen.DefaultDetail()
		def.HandDetail = &d
	}
	for _, raw := range f.loras {
		lora, err := parseLora(raw)
		if err != nil {
			return imagegen.Definition{}, err
		}
		def.Loras = append(def.Loras, lora)
	}
	if f.upscaler != "" {
		model, err := imagegen.ParseUpscalerToken(f.upscaler)
		if err != nil {
			return imagegen.Definition{}, err
		}
		def.Upscaler = &imagegen.Upscaler{Model: model, TileSize: f.tileSize, TilePadding: f.tilePadding}
	}
	for _, raw := range f.inpaints {
		inpaint, err := parseInpaint(raw)
		if err != nil {
			return imagegen.Definition{}, err
		}
		def.Inpaints = append(def.Inpaints, inpaint)
	}
	return def, def.Validate()
}

// parseInpaint accepts "x,y,width,height" or "x,y,width,height:strength".
func parseInpaint(raw string) (imagegen.Inpaint, error) {
	region, strength, found := strings.Cut(strings.TrimSpace(raw), ":")
	parts := strings.Split(region, ",")
	if len(parts) != 4 {
		return imagegen.Inpaint{}, fmt.Errorf("inpaint %q: want x,y,width,height", raw)
	}
	var coords [4]float32
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return imagegen.Inpaint{}, fmt.Errorf("inpaint %q: %w", raw, err)
		}
		coords[i] = float32(v)
	}
	inpaint := imagegen.Inpaint{
		Region:   imagegen.Rectangle{X: coords[0], Y: coords[1], Width: coords[2], Height: coords[3]},
		Strength: imagegen.DefaultDetailStrength,
		Padding:  imagegen.DefaultDetailPadding,
	}
	if found {
		n, err := strconv.ParseUint(strength, 10, 32)
		if err != nil {
			return imagegen.Inpaint{}, fmt.Errorf("inpaint %q: strength: %w", raw, err)
		}
		inpaint.Strength = uint32(n)
	}
	return inpaint, inpaint.Validate()
}

// parseLora accepts "file" or "file:strength".
func parseLora(raw string) (imagegen.Lora, error) {
	file, strength, found := strings.Cut(strings.TrimSpace(raw), ":")
	lora := imagegen.Lora{File: file, Strength: imagegen.DefaultLoraStrength}
	if found {
		n, err := strconv.ParseUint(strength, 10, 32)
		if err != nil {
			return imagegen.Lora{}, fmt.Errorf("lora %q: strength: %w", raw, err)
		}
		lora.Strength = uint32(n)
	}
	return lora, lora.Validate()
}

// generate runs one session, writes the final frame and returns the entry
// describing it for the history.
func generate(ctx context.Context, client *imagegen.Client, def imagegen.Definition, previewAfter *float32, output string, out io.Writer) (history.Entry, error) {
	start := time.Now()
	stream := client.Generate(ctx, def, previewAfter)
	defer stream.Close()

	var finished *imagegen.Finished
	var err error
	for res := range stream.Results() {
		if res.Err != nil {
			err = res.Err
			break
		}
		switch ev := res.Event.(type) {
		case imagegen.Sampling:
			fmt.Fprintf(out, "sampling %3.0f%%\n", ev.Progress*100)
		case imagegen.Finished:
			finished = &ev
		}
	}
	if err == nil && finished == nil {
		err = fmt.Errorf("session %s ended without a final image", stream.ID)
	}

	if err == nil {
		if output == "" {
			output = stream.ID + ".png"
		}
		err = writePNG(output, finished.Image)
		if err == nil {
			fmt.Fprintf(out, "wrote %s (%s, faces=%d hands=%d, seed=%d)\n",
				output, finished.Image.Size, len(finished.Faces), len(finished.Hands), uint64(def.Seed))
		}
	}
	return history.EntryFor(stream.ID, def, finished, time.Since(start), err), err
}

func writePNG(path string, img imagegen.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := img.EncodePNG(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
