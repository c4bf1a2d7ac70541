package nightlyreport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := func() *NightlyReportFlags {
		f := NewNightlyReportFlags()
		f.JenkinsURL = "https://jenkins.example.com"
		return f
	}

	tests := []struct {
		name        string
		mutate      func(*NightlyReportFlags)
		expectedErr string
	}{
		{
			name:   "defaults plus url are valid",
			mutate: func(f *NightlyReportFlags) {},
		},
		{
			name:        "missing jenkins url",
			mutate:      func(f *NightlyReportFlags) { f.JenkinsURL = "" },
			expectedErr: "--jenkins-url",
		},
		{
			name:        "malformed date",
			mutate:      func(f *NightlyReportFlags) { f.Date = "01/10/2024" },
			expectedErr: "--date",
		},
		{
			name:        "username without token",
			mutate:      func(f *NightlyReportFlags) { f.Username = "user" },
			expectedErr: "--api-token",
		},
		{
			name: "credentials together are valid",
			mutate: func(f *NightlyReportFlags) {
				f.Username = "user"
				f.APIToken = "token"
			},
		},
		{
			name:        "mail token requires author",
			mutate:      func(f *NightlyReportFlags) { f.MailToken = "secret" },
			expectedErr: "--from",
		},
		{
			name: "mail token requires recipients",
			mutate: func(f *NightlyReportFlags) {
				f.MailToken = "secret"
				f.From = "ci@example.com"
			},
			expectedErr: "--recipients",
		},
		{
			name: "complete mail settings are valid",
			mutate: func(f *NightlyReportFlags) {
				f.MailToken = "secret"
				f.From = "ci@example.com"
				f.Recipients = []string{"team@example.com"}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := valid()
			test.mutate(f)
			err := f.Validate()
			if test.expectedErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, test.expectedErr)
			}
		})
	}
}

func TestDefaultDateIsTodayUTC(t *testing.T) {
	f := NewNightlyReportFlags()
	parsed, err := time.Parse(dateLayout, f.Date)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 25*time.Hour)
}
