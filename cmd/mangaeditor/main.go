/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"

	"mangaeditor/internal/config"
	"mangaeditor/internal/crash"
	"mangaeditor/internal/filter"
	applog "mangaeditor/internal/log"
	"mangaeditor/internal/ocr"
	"mangaeditor/internal/server"
	"mangaeditor/internal/store"
	"mangaeditor/internal/telemetry"
	"mangaeditor/internal/undo"
	"mangaeditor/internal/upload"
	"mangaeditor/internal/version"
)

func usage() {
	fmt.Println("Manga Editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mangaeditor serve                                   Run the HTTP API")
	fmt.Println("  mangaeditor version|-v|--version                    Show version")
	fmt.Println("  mangaeditor filter <in> <out> [brightness=N] [contrast=N] [saturation=N]")
	fmt.Println("                                                      Apply image filters to a file")
	fmt.Println("  mangaeditor projects [baseURL]                      List projects of a running server")
	fmt.Println("  mangaeditor token set <value> | token clear         Manage the detector API token")
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
	logOpts := applog.FromEnv()
	if os.Getenv(config.EnvLogLevel) == "" {
		logOpts.Level = cfg.Logging.Level
	}
	if os.Getenv(config.EnvLogFormat) == "" {
		logOpts.Format = cfg.Logging.Format
	}
	if logOpts.File == "" {
		logOpts.File = cfg.Logging.File
	}
	logOpts.AddSource = logOpts.AddSource || cfg.Logging.Source
	applog.Init(logOpts)
	defer crash.Recover(cfg.General.DataDir)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.SetDefault(telemetry.New(tcfg))

	l := applog.WithComponent("cli")
	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
	case "serve":
		exitOn(l, "serve", serve(cfg, token))
	case "filter":
		if len(args) < 4 {
			fmt.Println("filter requires <in> and <out>")
			usage()
			os.Exit(2)
		}
		exitOn(l, "filter", runFilter(args[2], args[3], args[4:]))
	case "projects":
		base := "http://localhost" + cfg.Server.Addr
		if len(args) >= 3 {
			base = args[2]
		}
		exitOn(l, "projects", listProjects(base))
	case "token":
		exitOn(l, "token", runToken(args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func exitOn(l *slog.Logger, op string, err error) {
	if err == nil {
		return
	}
	l.Error(op+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func serve(cfg config.AppConfig, token string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l := applog.WithComponent("serve")

	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	repo, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			l.Error("close store", slog.Any("err", err))
		}
	}()

	det, closeDet, err := buildDetector(ctx, cfg.Detector, token)
	if err != nil {
		return err
	}
	defer closeDet()

	uploads := upload.New(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes())
	pl := ocr.New(repo, det)
	pl.Timeout = cfg.Detector.Timeout()
	pl.ResolvePath = uploads.Resolve

	srv, err := server.New(server.Options{
		Store:   repo,
		Uploads: uploads,
		OCR:     pl,
		History: undo.NewManager(undo.Config{MaxPerBox: 100, MinInterval: 500 * time.Millisecond}),
		DataDir: cfg.General.DataDir,
		Event:   telemetry.Event,
	})
	if err != nil {
		return err
	}
	l.Info("starting",
		slog.String("version", version.String()),
		slog.String("store", cfg.Store.Driver),
		slog.String("uploads", cfg.Server.UploadDir),
		slog.Bool("detector", det != nil))
	defer telemetry.Default().Flush(context.Background())
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

// parseFilterArgs reads kind=value pairs in order.
func parseFilterArgs(args []string) ([]filter.Step, error) {
	steps := make([]filter.Step, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("expected kind=value, got %q", a)
		}
		kind, err := filter.ParseKind(k)
		if err != nil {
			return nil, err
		}
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value %q", k, v)
		}
		st := filter.Step{Kind: kind, Value: val}
		if err := st.Validate(); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func runFilter(in, out string, args []string) error {
	steps, err := parseFilterArgs(args)
	if err != nil {
		return err
	}
	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open %s: %w", in, err)
	}
	res, err := filter.ApplyImage(img, steps...)
	if err != nil {
		return err
	}
	if err := imaging.Save(res, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%dx%d, %d filters)\n", out, res.Bounds().Dx(), res.Bounds().Dy(), len(steps))
	return nil
}

func listProjects(base string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	list, err := server.NewClient(base).ListProjects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPDATED")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%s\n", p.ID, p.Name, p.Width, p.Height, p.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runToken(args []string) error {
	if len(args) == 0 {
		return errors.New("token requires set <value> or clear")
	}
	switch args[0] {
	case "set":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return errors.New("token set requires a value")
		}
		if err := config.SaveToken(args[1]); err != nil {
			return err
		}
		fmt.Println("Detector token stored in the OS keyring.")
	case "clear":
		if err := config.SaveToken(""); err != nil {
			return err
		}
		fmt.Println("Detector token removed.")
	default:
		return fmt.Errorf("unknown token command %q", args[0])
	}
	return nil
}
