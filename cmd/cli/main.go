package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"geokd/pkg/config"
	"geokd/pkg/core"
	"geokd/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to geokd.yaml")
	csvPath := flag.String("csv", "", "default city dataset (overrides config)")
	verbose := flag.Bool("v", false, "log to stderr at debug level")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Data.CSVPath = *csvPath
	}

	log := logger.Discard()
	if *verbose {
		cfg.Log.Level = "debug"
		log = logger.Setup(cfg.Log)
	}

	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))

	store, err := core.NewGeoStore(cfg, log)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("GeoKD shell (dataset: %s)\n", cfg.Data.CSVPath)
	newShell(store, cfg, os.Stdin, os.Stdout).run()
}
