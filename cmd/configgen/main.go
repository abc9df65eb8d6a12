package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/catalog"
	"github.com/danmuck/kiroshi/internal/config"
	logs "github.com/danmuck/kiroshi/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := fs.String("kind", config.KindClient, "config kind: client|models")
	output := fs.String("output", "", "output path for config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "", "config path for validation (defaults to the per-kind path)")
	force := fs.Bool("force", false, "overwrite existing config file")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	logs.ConfigureRuntime()

	if *validate {
		path := *input
		if path == "" {
			p, err := defaultPath(*kind)
			if err != nil {
				return err
			}
			path = p
		}
		switch *kind {
		case config.KindClient:
			if _, err := config.Load(path); err != nil {
				return err
			}
		case config.KindModels:
			settings, err := catalog.LoadSettings(path)
			if err != nil {
				return err
			}
			logs.Infof("models configured=%d", len(settings.Names()))
		default:
			return fmt.Errorf("unknown kind: %s", *kind)
		}
		logs.Infof("Validated %s config at %s", *kind, path)
		return nil
	}

	target := *output
	if target == "" {
		p, err := defaultPath(*kind)
		if err != nil {
			return err
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	logs.Infof("Wrote %s config template to %s", *kind, target)
	return nil
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindClient:
		return "kiroshi.toml", nil
	case config.KindModels:
		return config.Default().Backend.SettingsPath, nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}
