// Package nightlyreport wires the nightly report aggregation into a command.
package nightlyreport

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

type NightlyReportFlags struct {
	JenkinsURL string
	Username   string
	APIToken   string

	ParentJob        string
	StandaloneFolder string
	ExcludedFamilies []string
	Date             string
	DBPath           string

	MailToken  string
	From       string
	Recipients []string
	SMTPHost   string
	SMTPPort   int
	Subject    string

	Debug bool
}

func NewNightlyReportFlags() *NightlyReportFlags {
	return &NightlyReportFlags{
		ParentJob:        "Mystikos/job/Nightly-Pipeline-Scheduled",
		StandaloneFolder: "Mystikos/job/Standalone-Pipelines",
		ExcludedFamilies: []string{"Send-Email"},
		Date:             time.Now().UTC().Format(dateLayout),
		DBPath:           "nightly.db",
		SMTPHost:         "smtp.office365.com",
		SMTPPort:         587,
		Subject:          "Nightly Test Report",
	}
}

func (f *NightlyReportFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.JenkinsURL, "jenkins-url", f.JenkinsURL, "Base URL of the Jenkins build server.")
	fs.StringVar(&f.Username, "username", f.Username, "Username to authenticate with the Jenkins build server.")
	fs.StringVar(&f.APIToken, "api-token", f.APIToken, "API token for the user you are authenticating with.")
	fs.StringVar(&f.ParentJob, "job", f.ParentJob, "URL path of the scheduled parent job to report on.")
	fs.StringVar(&f.StandaloneFolder, "standalone-folder", f.StandaloneFolder, "URL path of the folder holding the downstream jobs.")
	fs.StringSliceVar(&f.ExcludedFamilies, "exclude", f.ExcludedFamilies, "Downstream job names to leave out of the report.")
	fs.StringVar(&f.Date, "date", f.Date, "The date (YYYY-MM-DD, UTC) to make a report for.")
	fs.StringVar(&f.DBPath, "db-path", f.DBPath, "Path of the SQLite database holding collected build results.")
	fs.StringVar(&f.MailToken, "mail-token", f.MailToken, "SMTP token; when set, the report is emailed.")
	fs.StringVar(&f.From, "from", f.From, "Author address of the report email.")
	fs.StringSliceVar(&f.Recipients, "recipients", f.Recipients, "Recipient addresses of the report email.")
	fs.StringVar(&f.SMTPHost, "smtp-host", f.SMTPHost, "SMTP submission host.")
	fs.IntVar(&f.SMTPPort, "smtp-port", f.SMTPPort, "SMTP submission port.")
	fs.StringVar(&f.Subject, "subject", f.Subject, "Subject prefix of the report email; the report date is appended.")
	fs.BoolVar(&f.Debug, "debug", f.Debug, "Enable debug output.")
}

// Validate checks to see if the user-input is likely to produce functional runtime options
func (f *NightlyReportFlags) Validate() error {
	if len(f.JenkinsURL) == 0 {
		return fmt.Errorf("missing --jenkins-url: like https://jenkins.example.com")
	}
	if _, err := time.Parse(dateLayout, f.Date); err != nil {
		return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", f.Date, err)
	}
	if (f.Username == "") != (f.APIToken == "") {
		return fmt.Errorf("--username and --api-token must be provided together")
	}
	if f.MailToken != "" {
		if f.From == "" {
			return fmt.Errorf("missing --from: required when --mail-token is set")
		}
		if len(f.Recipients) == 0 {
			return fmt.Errorf("missing --recipients: required when --mail-token is set")
		}
	}
	return nil
}

func NewNightlyReportCommand() *cobra.Command {
	f := NewNightlyReportFlags()

	cmd := &cobra.Command{
		Use:          "nightly-reporter",
		Long:         `Aggregate the downstream builds of a nightly pipeline and email a status report`,
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if f.Debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
			if err := f.Validate(); err != nil {
				logrus.WithError(err).Fatal("Flags are invalid")
			}
			o, err := f.ToOptions(ctx)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to build runtime options")
			}
			defer o.Close()

			if err := o.Run(ctx); err != nil {
				logrus.WithError(err).Fatal("Command failed")
			}

			return nil
		},

		Args: noArgs,
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		if len(arg) > 0 {
			return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
		}
	}
	return nil
}
