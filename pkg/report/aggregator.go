// Package report orchestrates one nightly reporting run: it discovers the
// downstream builds a parent pipeline triggered on a given date, persists
// their results exactly once, and assembles the report rows with a trailing
// history window per build family.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/enclave-ci/nightly-reporter/pkg/buildstore"
	"github.com/enclave-ci/nightly-reporter/pkg/jenkins"
	"github.com/enclave-ci/nightly-reporter/pkg/logscan"
)

// DefaultHistoryDays is the length of the trailing history window.
const DefaultHistoryDays = 6

const dateLayout = "2006-01-02"

// CIClient is the subset of the Jenkins client the aggregator depends on.
type CIClient interface {
	JobInfo(ctx context.Context, jobPath, tree string) (*jenkins.JobInfo, error)
	BuildLog(ctx context.Context, jobPath string, number int) (string, error)
	BuildInfo(ctx context.Context, jobPath string, number int) (*jenkins.BuildInfo, error)
	BaseURL() string
}

// HistoryEntry is one trailing-window cell of a report row.
type HistoryEntry struct {
	Date   string
	Result string
}

// Row is a stored build record plus its trailing history window, most recent
// date first. Every row carries exactly HistoryDays entries; dates with no
// matching record hold the "N/A" sentinel.
type Row struct {
	buildstore.Record
	History []HistoryEntry
}

// Config describes the pipeline topology a run reports on.
type Config struct {
	// ParentJob is the URL path of the scheduled pipeline, e.g.
	// "Mystikos/job/Nightly-Pipeline-Scheduled".
	ParentJob string
	// StandaloneFolder is the URL path of the folder holding the downstream
	// jobs, e.g. "Mystikos/job/Standalone-Pipelines".
	StandaloneFolder string
	// Exclusions are family names filtered out of log scanning.
	Exclusions logscan.ExclusionSet
	// HistoryDays overrides DefaultHistoryDays when positive.
	HistoryDays int
}

func (c Config) historyDays() int {
	if c.HistoryDays > 0 {
		return c.HistoryDays
	}
	return DefaultHistoryDays
}

// Aggregator drives Scanner, Fetcher and Store for a single run.
type Aggregator struct {
	client CIClient
	store  *buildstore.Store
	config Config
}

func NewAggregator(client CIClient, store *buildstore.Store, config Config) *Aggregator {
	return &Aggregator{
		client: client,
		store:  store,
		config: config,
	}
}

// Run collects the downstream builds for date (YYYY-MM-DD) and returns the
// report rows. A date with no parent builds produces an empty report, not an
// error.
func (a *Aggregator) Run(ctx context.Context, date string) ([]Row, error) {
	if err := a.CollectDownstreamBuilds(ctx, date); err != nil {
		return nil, err
	}
	return a.BuildReport(date)
}

// CollectDownstreamBuilds scans the parent builds of the given date and
// stores a record for every newly discovered downstream build. Builds already
// present in the store are skipped, so re-running for the same date inserts
// nothing new.
func (a *Aggregator) CollectDownstreamBuilds(ctx context.Context, date string) error {
	jobInfo, err := a.client.JobInfo(ctx, a.config.ParentJob, "builds[fullDisplayName,id,number,timestamp]")
	if err != nil {
		return fmt.Errorf("could not fetch parent job %s: %w", a.config.ParentJob, err)
	}

	var log strings.Builder
	for _, build := range jobInfo.Builds {
		buildDate := time.UnixMilli(build.Timestamp).UTC().Format(dateLayout)
		logrus.WithFields(logrus.Fields{
			"build":     build.Number,
			"timestamp": build.Timestamp,
			"date":      buildDate,
		}).Debug("Considering parent build")
		if buildDate != date {
			continue
		}
		text, err := a.client.BuildLog(ctx, a.config.ParentJob, build.Number)
		if err != nil {
			return fmt.Errorf("could not fetch console log of parent build %d: %w", build.Number, err)
		}
		log.WriteString(text)
	}

	for _, match := range logscan.Scan(log.String(), a.config.Exclusions) {
		stored, err := a.store.Exists(match.Family, match.Number)
		if err != nil {
			return err
		}
		if stored {
			continue
		}
		record, err := a.fetchRecord(ctx, match, date)
		if err != nil {
			// One broken downstream build must not block the rest of the
			// report.
			logrus.WithError(err).WithFields(logrus.Fields{
				"family": match.Family,
				"number": match.Number,
			}).Warn("Skipping downstream build, could not fetch its metadata.")
			continue
		}
		if err := a.store.Insert(record); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) fetchRecord(ctx context.Context, match logscan.Match, date string) (buildstore.Record, error) {
	logrus.WithFields(logrus.Fields{
		"family": match.Family,
		"number": match.Number,
	}).Info("Fetching downstream build metadata")
	jobPath := fmt.Sprintf("%s/job/%s", a.config.StandaloneFolder, match.Family)
	info, err := a.client.BuildInfo(ctx, jobPath, match.Number)
	if err != nil {
		return buildstore.Record{}, err
	}
	params := info.Params()
	return buildstore.Record{
		Family: match.Family,
		Number: match.Number,
		OS:     osDescriptor(params.OSVersion),
		VM:     vmDescriptor(params.VMGeneration),
		Result: info.Result,
		URL:    jenkins.BlueOceanURL(a.client.BaseURL(), folderPath(a.config.StandaloneFolder), match.Family, match.Number),
		Date:   date,
	}, nil
}

// BuildReport queries the store for the date's records and attaches the
// trailing history window to each.
func (a *Aggregator) BuildReport(date string) ([]Row, error) {
	records, err := a.store.ListByDate(date)
	if err != nil {
		return nil, err
	}
	historyDates, err := HistoryDates(date, a.config.historyDays())
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		row := Row{Record: record, History: make([]HistoryEntry, 0, len(historyDates))}
		for _, day := range historyDates {
			result, err := a.store.HistoryResult(record.Family, record.OS, record.VM, day)
			if err != nil {
				return nil, err
			}
			row.History = append(row.History, HistoryEntry{Date: day, Result: result})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// HistoryDates returns the given number of calendar dates immediately
// preceding date, most recent first. Plain day subtraction, no business-day
// logic.
func HistoryDates(date string, days int) ([]string, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid report date %q: %w", date, err)
	}
	dates := make([]string, 0, days)
	for i := 1; i <= days; i++ {
		dates = append(dates, day.AddDate(0, 0, -i).Format(dateLayout))
	}
	return dates, nil
}

// osDescriptor renders the operating-system column value. A missing parameter
// stays the bare sentinel rather than becoming "Ubuntu N/A".
func osDescriptor(version string) string {
	if version == jenkins.NotAvailable {
		return jenkins.NotAvailable
	}
	return "Ubuntu " + version
}

func vmDescriptor(generation string) string {
	if generation == jenkins.NotAvailable {
		return jenkins.NotAvailable
	}
	return "ACC-" + generation
}

// folderPath turns a job URL path like "Mystikos/job/Standalone-Pipelines"
// into the plain folder path "Mystikos/Standalone-Pipelines".
func folderPath(jobPath string) string {
	return strings.ReplaceAll(jobPath, "/job/", "/")
}
