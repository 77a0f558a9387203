package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/devlights/gomy/output"

	"github.com/tuannm99/relcore/internal"
	"github.com/tuannm99/relcore/internal/engine"
)

const prompt = "relcore> "

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".relcore_history"
	}
	return filepath.Join(home, ".relcore_history")
}

func loadConfig(path string) (*internal.RelcoreConfig, error) {
	if path == "" {
		return internal.DefaultConfig()
	}
	return internal.LoadConfig(path)
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to a YAML config file")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	internal.SetupLogger(cfg.Log.Level, os.Stderr)

	db, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     *histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		return
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("%s (%s mode, workdir %s)\n", cfg.AppName, cfg.Storage.Mode, cfg.Storage.Workdir)
	fmt.Println("type \\help for help")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl+C clears current buffer
			buf.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			if strings.HasPrefix(line, "\\page") {
				id, err := parsePageCommand(line)
				if err == nil {
					err = db.DumpPage(id, os.Stdout)
				}
				if err != nil {
					fmt.Printf("error: %v\n", err)
				}
				continue
			}
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\d":
				printCatalog(os.Stdout, db.Catalog())
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \d                     list tables and columns
  \page <id>             dump one page
  \help                  show help

sql:
  end statement with ';'
  multiline is supported (CLI will wait until ';')`)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt(prompt)

		res, physical, err := db.ExecSQL(stmt)
		if physical != nil {
			output.Stdoutl("plan:", "\n"+strings.TrimRight(physical.String(), "\n"))
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(os.Stdout, res)
	}
}
