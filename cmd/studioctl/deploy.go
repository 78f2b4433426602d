package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/render"
)

// errDeploymentFailed is returned after a followed deployment ends in
// anything but completed, so the exit status reflects the outcome.
var errDeploymentFailed = errors.New("deployment did not complete")

func cmdDeploy(ctx context.Context, args []string) error {
	fs := newFlagSet("deploy", "deploy [flags] <model-id>")
	conn := addConnectFlags(fs)
	weights := fs.String("weights", "", "weights id (default: the model's default weights)")
	detach := fs.BoolP("detach", "d", false, "return once the deployment is accepted")
	noSSE := fs.Bool("no-sse", false, "poll for progress instead of using the event stream")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.store(ctx)
	if err != nil {
		return err
	}

	tracker := a.newTracker(progress.OnEnd(deploy.RecordOutcome(st.Deployments, a.logger)))
	defer tracker.Close()

	var starter deploy.Starter = tracker
	if *detach {
		starter = detached{}
	}
	trigger := deploy.NewTrigger(a.client, starter, a.logger,
		deploy.WithRecorder(st.Deployments),
		deploy.PreferSSE(a.cfg.PreferSSE && !*noSSE),
	)

	res, err := trigger.Deploy(ctx, model.DeployRequest{ModelID: fs.Arg(0), WeightsID: *weights})
	if err != nil {
		return err
	}

	switch {
	case !res.Success:
		if res.JobID != "" {
			return fmt.Errorf("deployment %s rejected: %s", res.JobID, res.Message)
		}
		return fmt.Errorf("deployment rejected: %s", res.Message)
	case res.Completed():
		fmt.Println(okMessage("Deployment completed", res.Message))
		return nil
	case *detach:
		fmt.Printf("Deployment accepted, job %s\n", res.JobID)
		fmt.Printf("Follow it with: studioctl progress %s\n", res.JobID)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Deployment accepted, job %s\n", res.JobID)
	return follow(ctx, tracker, render.New(os.Stdout))
}

func cmdProgress(ctx context.Context, args []string) error {
	fs := newFlagSet("progress", "progress [flags] <job-id>")
	conn := addConnectFlags(fs)
	noSSE := fs.Bool("no-sse", false, "poll for progress instead of using the event stream")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var opts []progress.TrackerOption
	if st, err := a.store(ctx); err == nil {
		opts = append(opts, progress.OnEnd(deploy.RecordOutcome(st.Deployments, a.logger)))
	}
	tracker := a.newTracker(opts...)
	defer tracker.Close()

	tracker.Start(fs.Arg(0), a.cfg.PreferSSE && !*noSSE)
	return follow(ctx, tracker, render.New(os.Stdout))
}

// follow renders tracker updates until the session ends or ctx is cancelled.
// The elapsed clock is refreshed once a second between snapshots.
func follow(ctx context.Context, tracker *progress.Tracker, r *render.Renderer) error {
	changed, cancel := tracker.Subscribe()
	defer cancel()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		st := tracker.Status()
		if !st.Tracking() {
			r.Done(st, time.Now())
			if st.Err != nil || !st.Snapshot.Status.Succeeded() {
				return errDeploymentFailed
			}
			return nil
		}
		r.Update(st, time.Now())

		select {
		case <-ctx.Done():
			tracker.Stop()
			r.Done(tracker.Status(), time.Now())
			return ctx.Err()
		case <-changed:
		case <-tick.C:
		}
	}
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := newFlagSet("history", "history [flags]")
	conn := addConnectFlags(fs)
	limit := fs.IntP("limit", "n", 20, "number of attempts to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.store(ctx)
	if err != nil {
		return err
	}
	records, err := st.Deployments.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No deployments recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tJOB\tMODEL\tWEIGHTS\tSTATUS\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.JobID, r.ModelID, dash(r.WeightsID), r.Status, dash(r.Message))
	}
	return w.Flush()
}

// detached accepts a job without following it.
type detached struct{}

func (detached) Start(string, bool) {}

func okMessage(prefix, msg string) string {
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
