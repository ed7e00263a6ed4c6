package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lptsplit/lptsplit"
)

// RunFlags decouple cobra from the run logic for testing.
type RunFlags struct {
	ConfigPath   string
	PrinterFile  string
	OutputDir    string
	Renderer     string
	RendererArgs []string
	TopOfForm    int
	PollInterval time.Duration
	Extension    string
	PIDFile      string
	LogFile      string
	LogLevel     string
	Console      bool
	Listen       string
	HistoryDSN   string
	Daemonize    bool
}

type StatusFlags struct {
	APIUrl     string
	APITimeout time.Duration
	JSON       bool
}

func bindRunFlags(cmd *cobra.Command, f *RunFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.PrinterFile, "prtfile", "", "printer output file to follow")
	fs.StringVar(&f.OutputDir, "pdfdir", "", "directory for rendered documents")
	fs.StringVar(&f.Renderer, "renderer", "", "renderer executable (default: lpt2pdf next to lptsplit)")
	fs.StringArrayVar(&f.RendererArgs, "renderer-arg", nil, "extra renderer option, repeatable")
	fs.IntVar(&f.TopOfForm, "tof", 3, "renderer top-of-form line; 0 omits -tof")
	fs.DurationVar(&f.PollInterval, "poll-interval", 2*time.Second, "sleep between polls of an idle printer file")
	fs.StringVar(&f.Extension, "ext", "pdf", "document file extension")
	fs.StringVar(&f.PIDFile, "pidfile", "", "pid file path")
	fs.StringVar(&f.LogFile, "logfile", "", "log file path")
	fs.StringVar(&f.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.Console, "console", false, "also log to stderr")
	fs.StringVar(&f.Listen, "listen", "", "status API listen address, e.g. 127.0.0.1:8099")
	fs.StringVar(&f.HistoryDSN, "history", "", "job history DSN (sqlite, postgres, clickhouse, opensearch)")
	fs.BoolVar(&f.Daemonize, "daemonize", false, "run in the background")
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cfg *lptsplit.Config, f *RunFlags, changed func(string) bool) {
	if changed("prtfile") {
		cfg.PrinterFile = f.PrinterFile
	}
	if changed("pdfdir") {
		cfg.OutputDir = f.OutputDir
	}
	if changed("renderer") {
		cfg.Renderer.Path = f.Renderer
	}
	if changed("renderer-arg") {
		cfg.Renderer.Args = f.RendererArgs
	}
	if changed("tof") {
		cfg.Renderer.TopOfForm = f.TopOfForm
	}
	if changed("poll-interval") {
		cfg.PollInterval = f.PollInterval
	}
	if changed("ext") {
		cfg.Output.Extension = f.Extension
	}
	if changed("pidfile") {
		cfg.PIDFile = f.PIDFile
	}
	if changed("logfile") {
		cfg.Log.File = f.LogFile
	}
	if changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if changed("console") {
		cfg.Log.Console = f.Console
	}
	if changed("listen") {
		cfg.Server.Listen = f.Listen
	}
	if changed("history") {
		cfg.History.DSN = f.HistoryDSN
	}
}
