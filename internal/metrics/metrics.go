// Package metrics exposes pipeline job metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	gometrics "github.com/docker/go-metrics"
)

// Job outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	jobRuns       gometrics.LabeledCounter
	jobDuration   gometrics.LabeledTimer
	syncFiles     gometrics.LabeledCounter
	manifestFiles gometrics.Gauge
	fetches       gometrics.LabeledCounter
	fetchDuration gometrics.LabeledTimer
)

func init() {
	ns := gometrics.NewNamespace("blsdata", "pipeline", nil)
	jobRuns = ns.NewLabeledCounter("job_runs", "The number of job invocations by outcome", "job", "outcome")
	jobDuration = ns.NewLabeledTimer("job_duration", "The number of seconds each job invocation takes", "job")
	syncFiles = ns.NewLabeledCounter("sync_files", "The number of files handled by directory syncs by action", "action")
	manifestFiles = ns.NewGauge("manifest", "The number of files tracked by the last sync", gometrics.Unit("files"))
	fetches = ns.NewLabeledCounter("http_fetches", "The number of remote GET requests by status code", "code")
	fetchDuration = ns.NewLabeledTimer("http_fetch_duration", "The number of seconds each remote GET request takes", "code")
	gometrics.Register(ns)
}

// ObserveJob records one job invocation.
func ObserveJob(job string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}

	jobRuns.WithValues(job, outcome).Inc()
	jobDuration.WithValues(job).UpdateSince(start)
}

// ObserveSync records the file counts of a finished sync.
func ObserveSync(fileCount, uploaded, skipped, deleted, failed int) {
	syncFiles.WithValues("upload").Inc(float64(uploaded))
	syncFiles.WithValues("skip").Inc(float64(skipped))
	syncFiles.WithValues("delete").Inc(float64(deleted))
	syncFiles.WithValues("fail").Inc(float64(failed))
	manifestFiles.Set(float64(fileCount))
}

// ObserveFetch records one remote GET. A zero status code means no
// response was received.
func ObserveFetch(statusCode int, d time.Duration) {
	code := strconv.Itoa(statusCode)
	fetches.WithValues(code).Inc()
	fetchDuration.WithValues(code).Update(d)
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	return gometrics.Handler()
}
