package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"neonote/internal/application/jobs"
	"neonote/internal/domain/job"
)

func newUploadCommand() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:     "upload PATH...",
		Short:   "Upload PDF or PowerPoint files and start tracking their jobs",
		GroupID: "jobs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}

			docs, err := app.source.Collect(args)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return errors.New("no PDF or PowerPoint files found")
			}

			// Subscribe before submitting so no transition is missed.
			events, unsubscribe := app.jobs.Subscribe()
			defer unsubscribe()

			uploads := make([]job.Upload, 0, len(docs))
			closers := make([]io.Closer, 0, len(docs))
			for _, doc := range docs {
				upload, closer, err := doc.Open()
				if err != nil {
					closeAll(closers)
					return err
				}
				uploads = append(uploads, upload)
				closers = append(closers, closer)
			}
			results := app.jobs.SubmitBatch(cmd.Context(), uploads)
			closeAll(closers)

			ids := make([]string, 0, len(results))
			for _, res := range results {
				if res.Err == nil {
					ids = append(ids, res.Job.ID)
				}
			}
			if wait && len(ids) > 0 {
				waitForJobs(cmd.Context(), app.jobs, events, ids)
			}

			failed := printResults(cmd.OutOrStdout(), app.jobs, results)
			if failed == len(results) {
				return errors.New("no uploads accepted")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Keep polling until every job completes, fails or is abandoned")
	return cmd
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

func settled(j job.Job) bool {
	return j.Status.Terminal() || j.Hint == job.HintAbandoned
}

func waitForJobs(ctx context.Context, svc *jobs.Service, events <-chan jobs.Event, ids []string) {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if j, err := svc.Get(id); err == nil && !settled(j) {
			pending[id] = struct{}{}
		}
	}

	// Slow subscribers may miss events, so pending jobs are re-read too.
	recheck := time.NewTicker(time.Second)
	defer recheck.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-recheck.C:
			for id := range pending {
				if j, err := svc.Get(id); err != nil || settled(j) {
					delete(pending, id)
				}
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if _, ok := pending[ev.Job.ID]; !ok {
				continue
			}
			if ev.Type == jobs.EventRemoved || settled(ev.Job) {
				delete(pending, ev.Job.ID)
			}
		}
	}
}

func printResults(w io.Writer, svc *jobs.Service, results []jobs.Result) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "FILE\tJOB\tSTATUS\tDETAIL")
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t-\trejected\t%v\n", res.FileName, res.Err)
			continue
		}
		j := res.Job
		if current, err := svc.Get(j.ID); err == nil {
			j = current
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.FileName, j.ID, j.Status, detail(j))
	}
	return failed
}

func detail(j job.Job) string {
	switch {
	case j.Status == job.StatusFailed:
		return j.ErrorMessage
	case j.Status == job.StatusCompleted && j.Output != nil && j.Output.VideoURL != "":
		return j.Output.VideoURL
	case j.Hint != "":
		return string(j.Hint)
	}
	return ""
}
