package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/cobra"

	"github.com/vincentbai/shadowtrace/internal/client"
	"github.com/vincentbai/shadowtrace/internal/rodhost"
)

var (
	headless   bool
	profileDir string
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in Chrome and capture interactions until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Run Chrome without a window")
	cmd.Flags().StringVar(&profileDir, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger()

	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}
	if opts.URL == "" {
		opts.URL = "http://" + cfg.Collector.Address
	}

	store, closeStore, err := cfg.OpenSessionStore()
	if err != nil {
		return err
	}
	defer closeStore()

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(headless)
	if profileDir != "" {
		l = l.UserDataDir(profileDir)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	host := rodhost.New(page, logger)
	defer host.Close()

	opts.Host = host
	opts.Store = store
	opts.Logger = logger
	c, err := client.New(opts)
	if err != nil {
		return err
	}
	logger.Info("capturing", "url", args[0], "session", c.SessionID(), "sampled", c.Sampled())

	if err := page.Navigate(args[0]); err != nil {
		return fmt.Errorf("navigating to %s: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	c.Flush()
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Close(closeCtx)
}
