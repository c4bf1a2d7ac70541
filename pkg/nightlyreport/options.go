package nightlyreport

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/enclave-ci/nightly-reporter/pkg/buildstore"
	"github.com/enclave-ci/nightly-reporter/pkg/jenkins"
	"github.com/enclave-ci/nightly-reporter/pkg/logscan"
	"github.com/enclave-ci/nightly-reporter/pkg/mail"
	"github.com/enclave-ci/nightly-reporter/pkg/report"
)

type NightlyReportOptions struct {
	Client     *jenkins.Client
	Store      *buildstore.Store
	Aggregator *report.Aggregator
	Sender     *mail.Sender

	Date       string
	From       string
	Recipients []string
	Subject    string
	SendMail   bool
	Debug      bool
}

// ToOptions goes from the user input to the runtime values needed to run the
// command. The Jenkins client authenticates eagerly, so credential problems
// surface here rather than mid-run.
func (f *NightlyReportFlags) ToOptions(ctx context.Context) (*NightlyReportOptions, error) {
	store, err := buildstore.Open(f.DBPath)
	if err != nil {
		return nil, err
	}

	client, err := jenkins.NewClient(ctx, f.JenkinsURL, f.Username, f.APIToken)
	if err != nil {
		store.Close()
		return nil, err
	}

	aggregator := report.NewAggregator(client, store, report.Config{
		ParentJob:        f.ParentJob,
		StandaloneFolder: f.StandaloneFolder,
		Exclusions:       logscan.NewExclusionSet(f.ExcludedFamilies...),
	})

	return &NightlyReportOptions{
		Client:     client,
		Store:      store,
		Aggregator: aggregator,
		Sender: &mail.Sender{
			Host:     f.SMTPHost,
			Port:     f.SMTPPort,
			Username: f.From,
			Token:    f.MailToken,
		},
		Date:       f.Date,
		From:       f.From,
		Recipients: f.Recipients,
		Subject:    f.Subject,
		SendMail:   f.MailToken != "",
		Debug:      f.Debug,
	}, nil
}

func (o *NightlyReportOptions) Close() {
	if err := o.Store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close the build store.")
	}
}

// Run executes one reporting run: collect the date's downstream builds into
// the store, assemble the report rows, render, and deliver. Collected results
// are committed before delivery is attempted, so a failed send loses only the
// notification.
func (o *NightlyReportOptions) Run(ctx context.Context) error {
	if o.Debug {
		description, err := o.Client.ServerDescription(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Could not fetch the Jenkins server description.")
		} else {
			logrus.WithField("description", description).Debug("Connected to Jenkins")
		}
	}

	rows, err := o.Aggregator.Run(ctx, o.Date)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"date": o.Date, "builds": len(rows)}).Info("Assembled report")

	historyDates, err := report.HistoryDates(o.Date, report.DefaultHistoryDays)
	if err != nil {
		return err
	}
	content := report.RenderHTML(o.Client.BaseURL(), report.Headers(historyDates), rows)
	content = report.Restyle(content)

	if !o.SendMail {
		logrus.Info("No mail token provided, not sending the report.")
		logrus.Debug(content)
		return nil
	}

	subject := fmt.Sprintf("%s %s", o.Subject, o.Date)
	if err := o.Sender.Send(o.From, o.Recipients, subject, content); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"subject":    subject,
		"recipients": o.Recipients,
	}).Info("Report sent")
	return nil
}
