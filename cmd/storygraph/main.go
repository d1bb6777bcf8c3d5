// Command storygraph ingests game design documents into a property graph
// and applies consistency-checked narrative updates against it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/ybkang/storygraph"
)

func main() {
	cmd := &cli.Command{
		Name:  "storygraph",
		Usage: "document-to-graph extraction and consistency updates for game design narratives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				Sources: cli.EnvVars("STORYGRAPH_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (overrides config)",
				Sources: cli.EnvVars("STORYGRAPH_DB_PATH"),
			},
		},
		Commands: []*cli.Command{
			ingestCommand(),
			updateCommand(),
			contextCommand(),
			statsCommand(),
			gamesCommand(),
			resetCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newEngine(cmd *cli.Command) (*storygraph.Engine, error) {
	cfg, err := storygraph.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if db := cmd.String("db"); db != "" {
		cfg.DBPath = db
	}
	return storygraph.New(cfg)
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "parse a design document and merge it into the graph",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("ingest takes exactly one file argument")
			}
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			game, err := eng.IngestFile(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			fmt.Printf("ingested into game %q\n", game)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "revise a document per a change request and converge the graph",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "game title", Required: true},
			&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "the change request", Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the revised document here instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("update takes exactly one file argument")
			}
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			doc, err := os.ReadFile(cmd.Args().First())
			if err != nil {
				return err
			}
			result, err := eng.Update(ctx, cmd.String("game"), string(doc), cmd.String("request"))
			if err != nil {
				return err
			}
			if out := cmd.String("out"); out != "" {
				if err := os.WriteFile(out, []byte(result.RevisedDocument), 0644); err != nil {
					return err
				}
				fmt.Printf("revised document written to %s (touched chapters: %v)\n", out, result.TouchedChapters)
				return nil
			}
			fmt.Println(result.RevisedDocument)
			return nil
		},
	}
}

func contextCommand() *cli.Command {
	return &cli.Command{
		Name:  "context",
		Usage: "show the graph context an update for this request would use",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "game title", Required: true},
			&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "the change request", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			text, err := eng.Context(ctx, cmd.String("game"), cmd.String("request"))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "print node and edge counts for one game",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "game title", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			stats, err := eng.Stats(ctx, cmd.String("game"))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func gamesCommand() *cli.Command {
	return &cli.Command{
		Name:  "games",
		Usage: "list stored games",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			games, err := eng.Games(ctx)
			if err != nil {
				return err
			}
			for _, g := range games {
				fmt.Println(g.Title)
			}
			return nil
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "delete one game, or everything with --all",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Usage: "game title"},
			&cli.BoolFlag{Name: "all", Usage: "delete every game"},
			&cli.BoolFlag{Name: "yes", Usage: "confirm the deletion"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			if cmd.Bool("all") {
				return eng.ResetAll(ctx, cmd.Bool("yes"))
			}
			game := cmd.String("game")
			if game == "" {
				return fmt.Errorf("reset needs --game or --all")
			}
			return eng.Reset(ctx, game, cmd.Bool("yes"))
		},
	}
}
