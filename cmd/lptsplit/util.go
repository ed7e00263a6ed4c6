package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lptsplit/lptsplit"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

func printStatus(w io.Writer, st lptsplit.Status) {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	_, _ = fmt.Fprintf(w, "state:     %s\n", state)
	if st.Error != "" {
		_, _ = fmt.Fprintf(w, "error:     %s\n", st.Error)
	}
	_, _ = fmt.Fprintf(w, "offset:    %d (%d pending)\n", st.Offset, st.Pending)
	_, _ = fmt.Fprintf(w, "lines:     %d\n", st.Lines)
	_, _ = fmt.Fprintf(w, "jobs:      %d completed, %d closed at shutdown\n", st.JobsCompleted, st.JobsAborted)
	if st.Current != nil {
		_, _ = fmt.Fprintf(w, "open job:  %s (pid %d, %d lines, %d markers, since %s)\n",
			st.Current.Path, st.Current.PID, st.Current.Lines, st.Job.Markers, st.Current.StartedAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(w, "open job:  none")
	}
	if st.Last != nil {
		_, _ = fmt.Fprintf(w, "last job:  %s (%s, %d lines)\n", st.Last.Path, st.Last.Reason, st.Last.Lines)
	}
}
