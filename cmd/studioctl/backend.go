package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tt-studio/console/internal/health"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/render"
	"github.com/tt-studio/console/internal/studio"
)

func cmdModels(ctx context.Context, args []string) error {
	fs := newFlagSet("models", "models [flags]")
	conn := addConnectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	containers, err := a.client.ListContainers(ctx)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		fmt.Println("No models deployed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tIMAGE\tSTATUS\tHEALTH")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), c.Name, dash(c.ModelName), c.ImageName, c.Status, dash(c.Health))
	}
	return w.Flush()
}

func cmdHealth(ctx context.Context, args []string) error {
	fs := newFlagSet("health", "health [flags] <deploy-id>")
	conn := addConnectFlags(fs)
	watch := fs.BoolP("watch", "w", false, "re-check until the model reports healthy")
	interval := fs.Duration("interval", 0, "re-check interval with --watch (default: STUDIO_HEALTH_INTERVAL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	deployID := fs.Arg(0)

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r := render.New(os.Stdout)
	checker := health.NewChecker(a.client, a.logger)

	if !*watch {
		status, err := checker.Check(ctx, deployID)
		fmt.Printf("%s %s\n", deployID, r.Health(status))
		if err != nil {
			return err
		}
		if status != model.HealthHealthy {
			return fmt.Errorf("model %s is %s", deployID, status)
		}
		return nil
	}

	every := *interval
	if every <= 0 {
		every = a.cfg.HealthInterval
	}
	monitor := health.NewMonitor(checker, every, a.logger)
	status, err := monitor.Watch(ctx, deployID, func(s model.HealthStatus) {
		fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05"), deployID, r.Health(s))
	})
	if err != nil {
		return fmt.Errorf("stopped watching %s while %s: %w", deployID, status, err)
	}
	return nil
}

func cmdAPIInfo(ctx context.Context, args []string) error {
	fs := newFlagSet("api-info", "api-info [flags] [deploy-id]")
	conn := addConnectFlags(fs)
	showToken := fs.Bool("show-token", false, "print the full bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	info, err := a.client.APIInfo(ctx)
	if err != nil {
		return err
	}
	if id := fs.Arg(0); id != "" {
		entry, ok := info[id]
		if !ok {
			return fmt.Errorf("no deployed model with id %s", id)
		}
		info = map[string]model.ModelAPIInfo{id: entry}
	}
	if len(info) == 0 {
		fmt.Println("No models deployed.")
		return nil
	}

	ids := make([]string, 0, len(info))
	for id := range info {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now()
	for i, id := range ids {
		if i > 0 {
			fmt.Println()
		}
		printAPIInfo(info[id], *showToken, now)
	}
	return nil
}

func printAPIInfo(m model.ModelAPIInfo, showToken bool, now time.Time) {
	fmt.Printf("%s (%s)\n", m.ModelName, shortID(m.DeployID))
	if m.HFModelID != "" {
		fmt.Printf("  hf model:  %s\n", m.HFModelID)
	}
	if m.BaseURL != "" {
		fmt.Printf("  base url:  %s\n", m.BaseURL)
	}

	names := make([]string, 0, len(m.Endpoints))
	for name := range m.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %s\n", name+":", m.Endpoints[name])
	}

	if m.JWTToken == "" {
		return
	}
	token := m.JWTToken
	if !showToken && len(token) > 16 {
		token = token[:16] + "…"
	}
	fmt.Printf("  token:     %s\n", token)
	if m.Token != nil && !m.Token.ExpiresAt.IsZero() {
		state := "valid until"
		if m.Token.Expired(now) {
			state = "expired"
		}
		fmt.Printf("  expiry:    %s %s\n", state, m.Token.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func cmdBoard(ctx context.Context, args []string) error {
	fs := newFlagSet("board", "board [flags] status|reset|refresh")
	conn := addConnectFlags(fs)
	yes := fs.BoolP("yes", "y", false, "reset without asking for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := "status"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch action {
	case "status":
		status, err := a.client.BoardStatus(ctx)
		if err != nil {
			return err
		}
		printBoard(status)
		return nil

	case "refresh":
		if err := a.client.RefreshBoardCache(ctx); err != nil {
			return err
		}
		fmt.Println("Board cache refreshed")
		return nil

	case "reset":
		if a.cfg.EnableDeployed {
			return fmt.Errorf("board reset is disabled in deployed mode")
		}
		if !*yes && !confirm("Reset the board? Running models will be stopped. [y/N] ") {
			return fmt.Errorf("reset cancelled")
		}
		return a.client.ResetBoard(ctx, func(line string) {
			fmt.Println(line)
		})

	default:
		fs.Usage()
		return errUsage
	}
}

func printBoard(b model.BoardStatus) {
	state := "healthy"
	if !b.Healthy() {
		state = "degraded"
	}
	fmt.Printf("Board:   %s", b.BoardName)
	if b.BoardType != "" {
		fmt.Printf(" (%s)", b.BoardType)
	}
	fmt.Printf(" %s\n", state)
	fmt.Printf("CPU:     %.1f%%\n", b.CPUUsage)
	fmt.Printf("Memory:  %.1f%%", b.MemoryUsage)
	if b.MemoryTotal != "" {
		fmt.Printf(" of %s", b.MemoryTotal)
	}
	fmt.Println()
	if b.Temperature > 0 {
		fmt.Printf("Temp:    %.1f°C\n", b.Temperature)
	}
	for _, d := range b.Devices {
		fmt.Printf("  [%d] %s %s", d.Index, d.Type, d.Status)
		if d.Temperature > 0 {
			fmt.Printf(" %.1f°C", d.Temperature)
		}
		if d.Power > 0 {
			fmt.Printf(" %.1fW", d.Power)
		}
		fmt.Println()
	}
}

func cmdLogs(ctx context.Context, args []string) error {
	fs := newFlagSet("logs", "logs [flags] [path]")
	conn := addConnectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if path := fs.Arg(0); path != "" {
		return a.client.GetLog(ctx, path, os.Stdout)
	}

	nodes, err := a.client.ListLogs(ctx)
	if err != nil {
		return err
	}
	var files []string
	for _, n := range nodes {
		files = append(files, n.Files()...)
	}
	if len(files) == 0 {
		fmt.Println("No log files.")
		return nil
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func cmdReleases(ctx context.Context, args []string) error {
	fs := newFlagSet("releases", "releases [flags]")
	conn := addConnectFlags(fs)
	limit := fs.IntP("limit", "n", 10, "number of releases to show")
	repo := fs.String("repo", "", "GitHub repository (default: STUDIO_GITHUB_REPO)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	name := *repo
	if name == "" {
		name = a.cfg.GitHubRepo
	}
	releases, err := studio.NewReleases("",
		studio.WithTimeout(a.cfg.RequestTimeout),
		studio.WithMiddleware(studio.Tracing(), studio.Instrument(), studio.Logging(a.logger)),
	)
	if err != nil {
		return err
	}

	list, err := releases.List(ctx, name, *limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Printf("No releases published for %s\n", name)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tPUBLISHED\tNAME")
	for _, rel := range list {
		tag := rel.TagName
		if rel.Prerelease {
			tag += " (pre)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", tag, rel.PublishedAt.Local().Format("2006-01-02"), dash(rel.Name))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if v := a.cfg.AppVersion; v != "" && v != "dev" {
		for _, rel := range list {
			if rel.Prerelease {
				continue
			}
			if strings.TrimPrefix(rel.TagName, "v") != strings.TrimPrefix(v, "v") {
				fmt.Printf("\nRunning %s, latest release is %s (%s)\n", v, rel.TagName, rel.HTMLURL)
			}
			break
		}
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
