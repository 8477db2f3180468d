package ruddit

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence"
	"github.com/forbiddencoding/ruddit/services/app"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func BuildCLI() *cli.Command {
	return &cli.Command{
		Name:  config.AppName,
		Usage: "fetch Reddit posts into a local store, query them with Gemini and export them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: config.DefaultConfigPath(),
				Usage: "path to the settings file (.toml, .yml or .yaml)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug output to stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}

			var w io.Writer = os.Stderr
			if cmd.ErrWriter != nil {
				w = cmd.ErrWriter
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))

			if _, err := maxprocs.Set(); err != nil {
				slog.Warn("could not set GOMAXPROCS", slog.Any("error", err))
			}

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "fetch a subreddit listing and store it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "subreddit",
						Aliases: []string{"s"},
						Usage:   "subreddit to fetch, defaults to SUBREDDIT",
					},
					&cli.StringFlag{
						Name:    "relevance",
						Aliases: []string{"r"},
						Usage:   "hot, new, top, rising or controversial; defaults to RELEVANCE",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					out, err := a.Fetch(ctx, &app.FetchInput{
						Subreddit: cmd.String("subreddit"),
						Relevance: cmd.String("relevance"),
					})
					if out != nil {
						_, _ = fmt.Fprintln(cmd.Root().Writer, out.String())
					}
					return err
				}),
			},
			{
				Name:      "search",
				Usage:     "search Reddit and store the results",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "relevance",
						Aliases: []string{"r"},
						Usage:   "relevance, hot, top, new or comments; defaults to RELEVANCE when search accepts it, else hot",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					out, err := a.Search(ctx, &app.SearchInput{
						Query:     strings.Join(cmd.Args().Slice(), " "),
						Relevance: cmd.String("relevance"),
					})
					if out != nil {
						_, _ = fmt.Fprintln(cmd.Root().Writer, out.String())
					}
					return err
				}),
			},
			{
				Name:      "ask",
				Usage:     "ask Gemini a question about the stored posts",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subreddit",
						Usage: "only use posts from this subreddit",
					},
					&cli.StringFlag{
						Name:  "keyword",
						Usage: "only use posts whose title or body contains this text",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "only use posts newer than this, e.g. 7d or 12h",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of posts sent to the model, defaults to gemini.max_posts",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					since, err := parseSince(cmd.String("since"))
					if err != nil {
						return err
					}

					answer, err := a.Ask(ctx, &app.AskInput{
						Question:  strings.Join(cmd.Args().Slice(), " "),
						Subreddit: cmd.String("subreddit"),
						Keyword:   cmd.String("keyword"),
						Since:     since,
						Limit:     int(cmd.Int("limit")),
					})
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, answer)
				}),
			},
			{
				Name:  "export",
				Usage: "export the store to a spreadsheet or CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "xlsx, csv or both; defaults to export.format",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "output directory; defaults to export.dir",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					out, err := a.Export(ctx, &app.ExportInput{
						Format: cmd.String("format"),
						Dir:    cmd.String("dir"),
					})
					if out != nil {
						for _, p := range out.Paths {
							_, _ = fmt.Fprintln(cmd.Root().Writer, p)
						}
					}
					return err
				}),
			},
			{
				Name:  "clear",
				Usage: "delete every stored post",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					out, err := a.Clear(ctx)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.Root().Writer, "removed %d\n", out.Removed)
					return nil
				}),
			},
			{
				Name:  "leads",
				Usage: "let Gemini pick likely leads using LEAD_KEYWORDS and export them",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "output directory; defaults to export.dir",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					out, err := a.Leads(ctx, &app.LeadsInput{Dir: cmd.String("dir")})
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.Root().Writer, "%d leads written to %s\n", len(out.Leads), out.Path)
					return nil
				}),
			},
			{
				Name:  "config",
				Usage: "inspect or change the settings file",
				Commands: []*cli.Command{
					{
						Name:  "path",
						Usage: "print the settings file path",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							_, _ = fmt.Fprintln(cmd.Root().Writer, cmd.Root().String("config"))
							return nil
						},
					},
					{
						Name:      "set",
						Usage:     "set one setting, e.g. config set SUBREDDIT golang",
						ArgsUsage: "<KEY> <VALUE>",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							if cmd.Args().Len() != 2 {
								return errs.Errorf(errs.KindInvalidArgument, "config.set", "expected KEY and VALUE, got %d arguments", cmd.Args().Len())
							}

							path := cmd.Root().String("config")
							key, value := cmd.Args().Get(0), cmd.Args().Get(1)

							if err := config.Set(ctx, path, key, value, config.NewValidator()); err != nil {
								return err
							}

							slog.Debug("updated setting", slog.String("key", key), slog.String("path", path))
							_, _ = fmt.Fprintf(cmd.Root().Writer, "%s updated\n", key)
							return nil
						},
					},
				},
			},
		},
	}
}

// withApp loads the settings, opens the store and hands a ready App to fn.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		conf, err := config.LoadConfig(ctx, cmd.Root().String("config"), config.NewValidator())
		if err != nil {
			slog.Debug("failed to load config", slog.Any("error", err))
			return err
		}

		db, err := persistence.New(ctx, &conf.Persistence)
		if err != nil {
			slog.Debug("failed to create persistence handle", slog.Any("error", err))
			return err
		}

		a := app.New(conf, db)
		defer func() {
			if err := a.Close(ctx); err != nil {
				slog.Warn("failed to close store", slog.Any("error", err))
			}
		}()

		return fn(ctx, cmd, a)
	}
}

// parseSince accepts time.ParseDuration syntax plus a whole number of days, e.g. "7d".
func parseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, errs.Errorf(errs.KindInvalidArgument, "ask", "invalid --since %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errs.Errorf(errs.KindInvalidArgument, "ask", "invalid --since %q", s)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errs.E(errs.KindIO, "print", err)
	}
	return nil
}
