package reconcile

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
)

// Outcome is what happened to one alias during a cycle.
type Outcome string

const (
	OutcomeCurrent        Outcome = "Current"
	OutcomeUpgraded       Outcome = "Upgraded"
	OutcomeDownloadFailed Outcome = "DownloadFailed"
	OutcomeFailed         Outcome = "Failed"
	OutcomeStopped        Outcome = "Stopped"
	OutcomeStopFailed     Outcome = "StopFailed"
)

// Result records the outcome for one alias of one identifier.
type Result struct {
	Identifier string
	Alias      string
	Version    string
	Outcome    Outcome
	Error      error
}

// Report summarizes a reconciliation cycle.
type Report struct {
	// Fetched is false when the manifest or the installed versions could not be
	// obtained, in which case the cycle did nothing.
	Fetched bool
	Results []Result

	errs *multierror.Error
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Error != nil {
		r.errs = multierror.Append(r.errs, fmt.Errorf("%s/%s: %w", res.Identifier, res.Alias, res.Error))
	}
}

// Err returns every per-app error of the cycle, or nil.
func (r *Report) Err() error {
	return r.errs.ErrorOrNil()
}

// Count returns how many results have outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Summary renders the results as a table.
func (r *Report) Summary() string {
	if len(r.Results) == 0 {
		return ""
	}

	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(writer, "IDENTIFIER\tALIAS\tVERSION\tSTATUS\tDETAILS")
	for _, res := range r.Results {
		details := "OK"
		if res.Error != nil {
			details = res.Error.Error()
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", res.Identifier, res.Alias, res.Version, res.Outcome, details)
	}

	writer.Flush()
	return buf.String()
}
