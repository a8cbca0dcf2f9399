// entry point of the application
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"vidtrack/internal/backend"
	"vidtrack/internal/config"
	"vidtrack/internal/library"
	"vidtrack/internal/notify"
	"vidtrack/internal/observability"
	"vidtrack/internal/registry"
	"vidtrack/internal/service"
	"vidtrack/internal/store"
	"vidtrack/internal/tracker"
	"vidtrack/internal/view"
	"vidtrack/pkg/format"
	httpserver "vidtrack/pkg/http/server"
	"vidtrack/pkg/logger"
)

type cliFlags struct {
	info        bool
	batch       string
	indices     string
	quality     string
	audioOnly   bool
	audioFormat string
	subs        bool
	subLang     string
	embedSubs   bool

	library      bool
	fetch        string
	deleteFile   string
	sites        bool
	history      bool
	search       string
	limit        int
	offset       int
	redownload   int64
	delHistory   int64
	clearHistory bool
	resume       bool
	retry        string
}

func parseFlags() *cliFlags {
	f := &cliFlags{}

	flag.BoolVar(&f.info, "info", false, "fetch metadata for the URL instead of downloading")
	flag.StringVar(&f.batch, "batch", "", "file with one URL per line, or - for stdin")
	flag.StringVar(&f.indices, "indices", "", "comma-separated playlist entries to download, e.g. 0,2,5")
	flag.StringVar(&f.quality, "quality", "best", "video quality")
	flag.BoolVar(&f.audioOnly, "audio", false, "download audio only")
	flag.StringVar(&f.audioFormat, "audio-format", "mp3", "audio format when -audio is set")
	flag.BoolVar(&f.subs, "subs", false, "download subtitles")
	flag.StringVar(&f.subLang, "sub-lang", "en", "subtitle language")
	flag.BoolVar(&f.embedSubs, "embed-subs", false, "embed subtitles into the video")

	flag.BoolVar(&f.library, "library", false, "list completed files")
	flag.StringVar(&f.fetch, "fetch", "", "fetch a completed file into the downloads directory")
	flag.StringVar(&f.deleteFile, "delete", "", "delete a completed file")
	flag.BoolVar(&f.sites, "sites", false, "list supported sites")
	flag.BoolVar(&f.history, "history", false, "list download history")
	flag.StringVar(&f.search, "search", "", "history search term")
	flag.IntVar(&f.limit, "limit", 20, "history page size")
	flag.IntVar(&f.offset, "offset", 0, "history page offset")
	flag.Int64Var(&f.redownload, "redownload", 0, "re-run a download from history by entry id")
	flag.Int64Var(&f.delHistory, "delete-history", 0, "delete a history entry by id")
	flag.BoolVar(&f.clearHistory, "clear-history", false, "wipe the download history")
	flag.BoolVar(&f.resume, "resume", false, "re-arm pollers for unfinished downloads")
	flag.StringVar(&f.retry, "retry", "", "retry a failed download by id")

	flag.Parse()

	return f
}

func (f *cliFlags) options() backend.DownloadOptions {
	return backend.DownloadOptions{
		Quality:      f.quality,
		AudioOnly:    f.audioOnly,
		AudioFormat:  f.audioFormat,
		DownloadSubs: f.subs,
		SubLang:      f.subLang,
		EmbedSubs:    f.embedSubs,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flags := parseFlags()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New()

	var metricsSrv *httpserver.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = httpserver.New(metrics.Handler(), httpserver.Options{Addr: cfg.Metrics.Addr})

		log.InfoContext(ctx, "metrics endpoint up", slog.String("addr", cfg.Metrics.Addr))
	}

	st, err := store.Open(log, cfg.Dir.StateDB)
	if err != nil {
		// Tracking still works without persistence across restarts.
		log.WarnContext(ctx, "state store unavailable", slog.Any("error", err))
		st = nil
	}

	v := view.New(os.Stdout)
	reg := registry.New(log, v, metrics)
	notifier := notify.NewConsole(log, os.Stdout)
	be := backend.New(log, cfg)
	lib := library.New(log, cfg, be, v, notifier, os.Stdout)
	trk := tracker.New(log, cfg, be, reg, st, notifier, lib, metrics)
	svc := service.New(log, be, trk, reg, st, notifier, metrics)

	if err := run(ctx, log, flags, svc, trk, lib, v); err != nil {
		log.ErrorContext(ctx, "command failed", slog.Any("error", err))
	}

	trk.Wait()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(); err != nil {
			log.Error(err.Error())
		}
	}

	if st != nil {
		if err := st.Close(); err != nil {
			log.Error(err.Error())
		}
	}
}

// run dispatches the command selected by flags. Submissions arm pollers that
// keep running after run returns; main waits for them.
func run(
	ctx context.Context,
	log *slog.Logger,
	flags *cliFlags,
	svc *service.Service,
	trk *tracker.Tracker,
	lib *library.Library,
	v *view.View,
) error {
	switch {
	case flags.library:
		v.SwitchTab(view.TabLibrary)

		return lib.Refresh(ctx)
	case flags.fetch != "":
		v.SwitchTab(view.TabLibrary)

		_, err := lib.Fetch(ctx, flags.fetch)

		return err
	case flags.deleteFile != "":
		v.SwitchTab(view.TabLibrary)

		return lib.Delete(ctx, flags.deleteFile)
	case flags.sites:
		return lib.SupportedSites(ctx)
	case flags.history:
		v.SwitchTab(view.TabHistory)

		return lib.History(ctx, flags.limit, flags.offset, flags.search)
	case flags.delHistory != 0:
		return lib.DeleteHistory(ctx, flags.delHistory)
	case flags.clearHistory:
		return lib.ClearHistory(ctx)
	case flags.redownload != 0:
		_, err := svc.Redownload(ctx, backend.HistoryEntry{ID: flags.redownload})

		return err
	case flags.resume:
		return svc.Resume(ctx)
	case flags.retry != "":
		// Retrying needs the record back in the registry first.
		if err := svc.Resume(ctx); err != nil {
			return err
		}

		return trk.Retry(ctx, flags.retry)
	case flags.batch != "":
		v.SwitchTab(view.TabBatch)

		raw, err := readBatch(flags.batch)
		if err != nil {
			return err
		}

		_, err = svc.SubmitBatch(ctx, raw, flags.options())

		return err
	}

	if flag.NArg() == 0 {
		flag.Usage()

		return fmt.Errorf("no URL given")
	}

	rawURL := flag.Arg(0)

	if flags.info {
		info, err := svc.Info(ctx, rawURL)
		if err != nil {
			return err
		}

		printInfo(info)

		return nil
	}

	if flags.indices != "" {
		indices, err := parseIndices(flags.indices)
		if err != nil {
			return err
		}

		info, err := svc.Info(ctx, rawURL)
		if err != nil {
			log.WarnContext(ctx, "cannot fetch playlist metadata", slog.Any("error", err))
			info = nil
		}

		_, err = svc.SubmitPlaylist(ctx, rawURL, indices, info, flags.options())

		return err
	}

	var title string
	if info, err := svc.Info(ctx, rawURL); err == nil {
		title = info.Title
	}

	_, err := svc.Submit(ctx, rawURL, title, flags.options())

	return err
}

func readBatch(src string) (string, error) {
	if src == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}

		return string(data), nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read batch file: %w", err)
	}

	return string(data), nil
}

func parseIndices(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	indices := make([]int, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse playlist index %q: %w", p, err)
		}

		indices = append(indices, n)
	}

	return indices, nil
}

func printInfo(info *backend.VideoInfo) {
	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Uploader: %s\n", info.Uploader)
	fmt.Printf("Duration: %s\n", format.Duration(info.Duration))
	fmt.Printf("Views:    %s\n", format.Count(info.ViewCount))

	if info.IsPlaylist {
		fmt.Printf("Playlist with %d videos:\n", len(info.PlaylistVideos))
		for i, pv := range info.PlaylistVideos {
			fmt.Printf("  %2d. %s (%s)\n", i, pv.Title, format.Duration(pv.Duration))
		}
	}

	if len(info.AvailableSubtitles) > 0 {
		fmt.Printf("Subtitles: %s\n", strings.Join(info.AvailableSubtitles, ", "))
	}
}
