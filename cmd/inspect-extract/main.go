// Command inspect-extract reads one inspection report image and prints the
// extracted record as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegors/inspect-ocr/internal/config"
	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/normalize"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/prompt"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML config file")
	provider := flag.String("provider", "", "override extraction provider (openai, gemini)")
	strict := flag.Bool("strict", false, "exit non-zero when the placeholder record is returned")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image.jpg|image.png>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	code, err := run(*configPath, *provider, *strict, flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func run(configPath, provider string, strict bool, imagePath string) (int, error) {
	if provider != "" {
		os.Setenv("INSPECT_PROVIDER", provider)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return 1, err
	}

	// Logs go to stderr so stdout stays valid JSON
	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: "console", Output: os.Stderr})
	if err != nil {
		return 1, err
	}
	defer log.Sync()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return 1, fmt.Errorf("failed to read image: %w", err)
	}
	img := extraction.Image{MediaType: mediaTypeFor(imagePath, data), Data: data}

	p, err := prompt.NewRenderer(log).Render(cfg.Extraction.PromptPath)
	if err != nil {
		return 1, err
	}
	requestor, err := extraction.New(cfg.Extraction, p, log)
	if err != nil {
		return 1, err
	}
	service := ocr.NewService(requestor, normalize.New(log), cfg.Extraction.MaxImageMB<<20, log)

	res, err := service.Extract(context.Background(), img)
	if err != nil {
		return 1, err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res.Record); err != nil {
		return 1, err
	}

	if strict && res.IsFallback() {
		return 3, fmt.Errorf("model output could not be parsed, placeholder record printed")
	}
	return 0, nil
}

// mediaTypeFor guesses from the extension and falls back to sniffing
func mediaTypeFor(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return extraction.MediaTypeJPEG
	case ".png":
		return extraction.MediaTypePNG
	}
	return extraction.DetectMediaType("", data)
}
