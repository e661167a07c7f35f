// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/corpus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lexmap",
		Usage: "Match incident descriptions to IPC offenses and their BNS successors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "embed",
				Usage:  "Embed the offense corpus and warm the vector cache",
				Action: embedCommand,
				Flags: append(append(storeFlags(), corpusFlags()...),
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Drop cached vectors for the model and embed from scratch",
					},
				),
			},
			{
				Name:      "match",
				Usage:     "Find the offense and successor section for an incident description",
				ArgsUsage: "<incident description>",
				Action:    matchCommand,
				Flags: append(append(storeFlags(), corpusFlags()...),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of ranked candidates to show",
						Value:   1,
					},
					&cli.BoolFlag{
						Name:  "draft",
						Usage: "Print a complaint draft for the match",
					},
					&cli.StringFlag{
						Name:  "details",
						Usage: "Incident details for the complaint draft (defaults to the query)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Trace each matching stage",
					},
				),
			},
			{
				Name:      "xref",
				Usage:     "Cross-reference an IPC section to its BNS successor",
				ArgsUsage: "<section>",
				Action:    xrefCommand,
				Flags: []cli.Flag{
					offensesFlag(),
					successorsFlag(),
					&cli.StringFlag{
						Name:  "fallback",
						Usage: "Reference shown when no successor matches",
						Value: "BNS 303 (General)",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Show recent searches",
				Action: historyCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to show",
						Value: 10,
					},
				),
			},
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./lexmap_db",
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   ai.DefaultEmbeddingHost,
			EnvVars: []string{"LEXMAP_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   ai.DefaultEmbeddingModel,
			EnvVars: []string{"LEXMAP_EMBEDDING_MODEL"},
		},
	}
}

func offensesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "offenses",
		Usage:   "Offense (IPC) table, CSV or TSV",
		Value:   "ipc_sections.csv",
		EnvVars: []string{"LEXMAP_OFFENSES"},
	}
}

func successorsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "successors",
		Usage:   "Successor (BNS) table, CSV or TSV",
		Value:   "bns_sections.csv",
		EnvVars: []string{"LEXMAP_SUCCESSORS"},
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		offensesFlag(),
		successorsFlag(),
		&cli.StringFlag{
			Name:  "text-field",
			Usage: "Offense text to embed (description, offense, combined)",
			Value: corpus.FieldDescription.String(),
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of offenses per embedding request",
			Value: corpus.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of concurrent embedding requests (0 = NumCPU/2)",
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
