package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/catalog"
)

type modelInfo struct {
	catalog.Model
	catalog.Metadata
}

func runModels(args []string, out io.Writer) error {
	var (
		configPath string
		asJSON     bool
	)
	fs := pflag.NewFlagSet("models", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	fs.BoolVar(&asJSON, "json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	models, err := catalog.ListModels(a.cfg.Backend.ModelsDir)
	if err != nil {
		return err
	}
	infos := make([]modelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, modelInfo{Model: m, Metadata: a.settings.Get(m.Name)})
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintf(out, "no models under %s\n", a.cfg.Backend.ModelsDir)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tPROMPT TEMPLATE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Size, info.PromptTemplate)
	}
	return tw.Flush()
}
