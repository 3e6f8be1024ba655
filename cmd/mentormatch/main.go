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
	"time"

	"github.com/poiesic/mentormatch"
	"github.com/poiesic/mentormatch/ai"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/presence"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := ai.DefaultConfig()
	return &cli.App{
		Name:  "mentormatch",
		Usage: "Embedding-based mentor matching",
		// Field text often contains commas
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to the vector store (directory for badger, file for sqlite)",
				EnvVars:  []string{"MENTORMATCH_DB"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Storage backend (badger, sqlite)",
				EnvVars: []string{"MENTORMATCH_BACKEND"},
				Value:   mentormatch.BackendBadger,
			},
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "Embedding provider (compatible, openai)",
				EnvVars: []string{"MENTORMATCH_PROVIDER"},
				Value:   defaults.Provider,
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"MENTORMATCH_EMBEDDING_HOST"},
				Value:   defaults.EmbeddingHost,
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"MENTORMATCH_EMBEDDING_MODEL"},
				Value:   defaults.EmbeddingModel,
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding provider",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.IntFlag{
				Name:  "dimensions",
				Usage: "Requested embedding dimensions (0 = model default)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for each embedding call",
				Value: defaults.RequestTimeout,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum concurrent embedding calls",
				Value: defaults.MaxConcurrency,
			},
			&cli.BoolFlag{
				Name:  "entire-profile",
				Usage: "Also embed each profile and criteria set as a whole",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "store",
				Usage:  "Embed and store a subject's profile fields",
				Action: storeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "Subject id",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "field",
						Aliases:  []string{"f"},
						Usage:    "Profile field as name=text (repeatable)",
						Required: true,
					},
				},
			},
			{
				Name:   "match",
				Usage:  "Find the best matches for a searcher",
				Action: matchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "searcher",
						Aliases:  []string{"s"},
						Usage:    "Searcher subject id",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "criteria",
						Aliases: []string{"c"},
						Usage:   "Search criterion as name=text (repeatable)",
					},
					&cli.StringFlag{
						Name:  "criteria-file",
						Usage: "YAML or JSON mapping of criteria names to text",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "eligible-file",
						Usage: "File listing the subject ids allowed in results",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print matches as JSON",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Embed and store profiles in bulk",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profiles",
						Aliases:  []string{"p"},
						Usage:    "YAML or JSON file of profiles",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of profiles to embed before each write",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N profiles",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Measure match quality against a labelled dataset",
				Action: evaluateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "YAML or JSON dataset of mentors and queries",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the detailed results",
						Value:   "matching-test-results.json",
					},
					&cli.IntFlag{
						Name:  "top-n",
						Usage: "Rank the target must reach to pass",
						Value: 3,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Matches requested per query",
						Value: 10,
					},
				},
			},
			{
				Name:   "attributes",
				Usage:  "List stored attribute names",
				Action: attributesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "subject",
						Aliases: []string{"s"},
						Usage:   "Only list attributes of this subject",
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Remove every vector stored for a subject",
				Action: deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "Subject id",
						Required: true,
					},
				},
			},
		},
	}
}

// openEngine builds an engine from the global flags.
func openEngine(c *cli.Context, extra ...mentormatch.EngineOption) (*mentormatch.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithProvider(c.String("provider")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithDimensions(c.Int("dimensions")),
		ai.WithRequestTimeout(c.Duration("timeout")),
		ai.WithMaxConcurrency(c.Int("concurrency")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []mentormatch.EngineOption{
		mentormatch.WithAIConfig(aiConfig),
		mentormatch.WithBackend(c.String("backend")),
		mentormatch.WithEntireProfile(c.Bool("entire-profile")),
	}
	engine, err := mentormatch.Open(c.String("db"), append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

// parseFields turns name=text pairs into a mapping. Text may contain '='.
func parseFields(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, text, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: expected name=text", pair)
		}
		if err := core.ValidateAttributeName(name); err != nil {
			return nil, fmt.Errorf("invalid field %q: %w", pair, err)
		}
		fields[name] = text
	}
	return fields, nil
}

func loadEligibility(path string) (core.EligibilityFilter, error) {
	if path == "" {
		return nil, nil
	}
	roster, err := presence.LoadRoster(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load eligible subjects: %w", err)
	}
	slog.Debug("loaded eligible subjects", "count", len(roster.Members()))
	return roster, nil
}

func setupLogger(c *cli.Context) error {
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
