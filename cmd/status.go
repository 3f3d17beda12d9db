package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/MimeLyc/subs-ai/internal/jobs"
)

func renderStatus(pending []*jobs.Job, cached int) string {
	if len(pending) == 0 {
		return fmt.Sprintf("No pending jobs (%d cached translations)", cached)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Batch", "Status", "Requests", "Created"})

	requests := 0
	for _, job := range pending {
		requests += len(job.Requests)
		tw.AppendRow(table.Row{
			job.ID,
			string(job.Status),
			strconv.Itoa(len(job.Requests)),
			job.CreatedAt.Local().Format(time.DateTime),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	var b strings.Builder
	b.WriteString(tw.Render())
	fmt.Fprintf(&b, "\n%d jobs still pending, with %d requests (%d cached translations)", len(pending), requests, cached)
	return b.String()
}
