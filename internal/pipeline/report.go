package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/neotheprogramist/integrity/internal/toolchain"
)

// Stage names the pipeline stage a layout reached.
type Stage string

const (
	StageSetup   Stage = "setup"
	StageCompile Stage = "compile"
	StageRun     Stage = "run"
	StageExtract Stage = "extract"
	StagePatch   Stage = "patch"
	StageProve   Stage = "prove"
	StageDone    Stage = "done"
)

// LayoutResult is the outcome of processing one layout. Failures are values
// here, not control flow: the pipeline collects them instead of letting one
// layout's error escape and abort its siblings.
type LayoutResult struct {
	Layout    toolchain.Layout
	Stage     Stage
	NSteps    int
	StepList  []int
	ProofPath string
	Duration  time.Duration
	Err       error
}

// Failed reports whether the layout's processing failed.
func (r LayoutResult) Failed() bool {
	return r.Err != nil
}

// Report aggregates per-layout results for a full pipeline run.
type Report struct {
	Results    []LayoutResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded returns the number of layouts that completed.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if !res.Failed() {
			n++
		}
	}
	return n
}

// Failed returns the results of layouts that did not complete.
func (r Report) Failed() []LayoutResult {
	var failed []LayoutResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// AllSucceeded reports whether every layout completed.
func (r Report) AllSucceeded() bool {
	return len(r.Failed()) == 0
}

// Summary renders a human-readable table of the run.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-8s %-10s %s\n", "LAYOUT", "STATUS", "DURATION", "DETAIL")
	for _, res := range r.Results {
		status := "ok"
		detail := res.ProofPath
		if res.Failed() {
			status = "failed"
			detail = fmt.Sprintf("%s: %v", res.Stage, res.Err)
		}
		fmt.Fprintf(&b, "%-24s %-8s %-10s %s\n",
			res.Layout, status, res.Duration.Round(time.Millisecond), detail)
	}
	fmt.Fprintf(&b, "%d/%d layouts succeeded in %s\n",
		r.Succeeded(), len(r.Results), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return b.String()
}
