package report

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enclave-ci/nightly-reporter/pkg/buildstore"
	"github.com/enclave-ci/nightly-reporter/pkg/jenkins"
	"github.com/enclave-ci/nightly-reporter/pkg/logscan"
)

// 2024-01-10T00:00:00Z in Jenkins' millisecond convention.
const jan10Millis = int64(1704844800000)

type fakeClient struct {
	jobInfo        map[string]*jenkins.JobInfo
	logs           map[string]string
	builds         map[string]*jenkins.BuildInfo
	buildErrs      map[string]error
	buildInfoCalls int
}

func (f *fakeClient) JobInfo(_ context.Context, jobPath, _ string) (*jenkins.JobInfo, error) {
	info, ok := f.jobInfo[jobPath]
	if !ok {
		return nil, fmt.Errorf("no such job %s", jobPath)
	}
	return info, nil
}

func (f *fakeClient) BuildLog(_ context.Context, jobPath string, number int) (string, error) {
	return f.logs[fmt.Sprintf("%s/%d", jobPath, number)], nil
}

func (f *fakeClient) BuildInfo(_ context.Context, jobPath string, number int) (*jenkins.BuildInfo, error) {
	f.buildInfoCalls++
	key := fmt.Sprintf("%s/%d", jobPath, number)
	if err, ok := f.buildErrs[key]; ok {
		return nil, err
	}
	info, ok := f.builds[key]
	if !ok {
		return nil, fmt.Errorf("no such build %s", key)
	}
	return info, nil
}

func (f *fakeClient) BaseURL() string {
	return "https://jenkins.example.com"
}

func testConfig() Config {
	return Config{
		ParentJob:        "Mystikos/job/Nightly-Pipeline-Scheduled",
		StandaloneFolder: "Mystikos/job/Standalone-Pipelines",
		Exclusions:       logscan.NewExclusionSet("Send-Email"),
	}
}

func testStore(t *testing.T) *buildstore.Store {
	t.Helper()
	store, err := buildstore.Open(filepath.Join(t.TempDir(), "nightly.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func successfulBuild(osVersion, vmGeneration string) *jenkins.BuildInfo {
	return &jenkins.BuildInfo{
		Result: "SUCCESS",
		Actions: []jenkins.Action{
			{Class: "hudson.model.ParametersAction", Parameters: []jenkins.Parameter{
				{Name: jenkins.ParamOSVersion, Value: osVersion},
				{Name: jenkins.ParamVMGeneration, Value: vmGeneration},
			}},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	client := &fakeClient{
		jobInfo: map[string]*jenkins.JobInfo{
			"Mystikos/job/Nightly-Pipeline-Scheduled": {Builds: []jenkins.BuildRef{
				{Number: 100, Timestamp: jan10Millis},
				{Number: 99, Timestamp: jan10Millis - 86400000},
			}},
		},
		logs: map[string]string{
			"Mystikos/job/Nightly-Pipeline-Scheduled/100": "Starting building Test-A #5\n",
		},
		builds: map[string]*jenkins.BuildInfo{
			"Mystikos/job/Standalone-Pipelines/job/Test-A/5": successfulBuild("20.04", "2"),
		},
	}
	store := testStore(t)
	aggregator := NewAggregator(client, store, testConfig())

	rows, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	expectedURL := "https://jenkins.example.com/blue/organizations/jenkins/Mystikos%2FStandalone-Pipelines%2FTest-A/detail/Test-A/5/pipeline"
	assert.Equal(t, buildstore.Record{
		Family: "Test-A",
		Number: 5,
		OS:     "Ubuntu 20.04",
		VM:     "ACC-2",
		Result: "SUCCESS",
		URL:    expectedURL,
		Date:   "2024-01-10",
	}, rows[0].Record)

	require.Len(t, rows[0].History, 6)
	assert.Equal(t, "2024-01-09", rows[0].History[0].Date)
	assert.Equal(t, "2024-01-04", rows[0].History[5].Date)
	for _, entry := range rows[0].History {
		assert.Equal(t, buildstore.NotAvailable, entry.Result)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	client := &fakeClient{
		jobInfo: map[string]*jenkins.JobInfo{
			"Mystikos/job/Nightly-Pipeline-Scheduled": {Builds: []jenkins.BuildRef{
				{Number: 100, Timestamp: jan10Millis},
			}},
		},
		logs: map[string]string{
			"Mystikos/job/Nightly-Pipeline-Scheduled/100": "Starting building Test-A #5\nStarting building Test-B #9\n",
		},
		builds: map[string]*jenkins.BuildInfo{
			"Mystikos/job/Standalone-Pipelines/job/Test-A/5": successfulBuild("20.04", "2"),
			"Mystikos/job/Standalone-Pipelines/job/Test-B/9": successfulBuild("22.04", "1"),
		},
	}
	store := testStore(t)
	aggregator := NewAggregator(client, store, testConfig())

	first, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 2, client.buildInfoCalls)

	second, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// Nothing was fetched or inserted the second time around.
	assert.Equal(t, 2, client.buildInfoCalls)
}

func TestRunSkipsBuildsThatFailToFetch(t *testing.T) {
	client := &fakeClient{
		jobInfo: map[string]*jenkins.JobInfo{
			"Mystikos/job/Nightly-Pipeline-Scheduled": {Builds: []jenkins.BuildRef{
				{Number: 100, Timestamp: jan10Millis},
			}},
		},
		logs: map[string]string{
			"Mystikos/job/Nightly-Pipeline-Scheduled/100": "Starting building Test-A #5\nStarting building Test-B #9\n",
		},
		builds: map[string]*jenkins.BuildInfo{
			"Mystikos/job/Standalone-Pipelines/job/Test-B/9": successfulBuild("22.04", "1"),
		},
		buildErrs: map[string]error{
			"Mystikos/job/Standalone-Pipelines/job/Test-A/5": fmt.Errorf("boom"),
		},
	}
	store := testStore(t)
	aggregator := NewAggregator(client, store, testConfig())

	rows, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Test-B", rows[0].Family)
}

func TestRunWithNoParentBuildsOnDate(t *testing.T) {
	client := &fakeClient{
		jobInfo: map[string]*jenkins.JobInfo{
			"Mystikos/job/Nightly-Pipeline-Scheduled": {Builds: []jenkins.BuildRef{
				{Number: 99, Timestamp: jan10Millis - 86400000},
			}},
		},
	}
	store := testStore(t)
	aggregator := NewAggregator(client, store, testConfig())

	rows, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, client.buildInfoCalls)
}

func TestRunExcludesNotificationJob(t *testing.T) {
	client := &fakeClient{
		jobInfo: map[string]*jenkins.JobInfo{
			"Mystikos/job/Nightly-Pipeline-Scheduled": {Builds: []jenkins.BuildRef{
				{Number: 100, Timestamp: jan10Millis},
			}},
		},
		logs: map[string]string{
			"Mystikos/job/Nightly-Pipeline-Scheduled/100": "Starting building Send-Email #3\nStarting building Test-A #5\n",
		},
		builds: map[string]*jenkins.BuildInfo{
			"Mystikos/job/Standalone-Pipelines/job/Test-A/5": successfulBuild("20.04", "2"),
		},
	}
	store := testStore(t)
	aggregator := NewAggregator(client, store, testConfig())

	rows, err := aggregator.Run(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Test-A", rows[0].Family)
	assert.Equal(t, 1, client.buildInfoCalls)
}

func TestBuildReportAttachesHistory(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Insert(buildstore.Record{
		Family: "Test-A", Number: 5, OS: "Ubuntu 20.04", VM: "ACC-2",
		Result: "SUCCESS", URL: "u", Date: "2024-01-10",
	}))
	require.NoError(t, store.Insert(buildstore.Record{
		Family: "Test-A", Number: 4, OS: "Ubuntu 20.04", VM: "ACC-2",
		Result: "FAILURE", URL: "u", Date: "2024-01-09",
	}))
	require.NoError(t, store.Insert(buildstore.Record{
		Family: "Test-A", Number: 1, OS: "Ubuntu 20.04", VM: "ACC-2",
		Result: "ABORTED", URL: "u", Date: "2024-01-06",
	}))

	aggregator := NewAggregator(&fakeClient{}, store, testConfig())
	rows, err := aggregator.BuildReport("2024-01-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	expected := []HistoryEntry{
		{Date: "2024-01-09", Result: "FAILURE"},
		{Date: "2024-01-08", Result: buildstore.NotAvailable},
		{Date: "2024-01-07", Result: buildstore.NotAvailable},
		{Date: "2024-01-06", Result: "ABORTED"},
		{Date: "2024-01-05", Result: buildstore.NotAvailable},
		{Date: "2024-01-04", Result: buildstore.NotAvailable},
	}
	assert.Equal(t, expected, rows[0].History)
}

func TestHistoryDates(t *testing.T) {
	dates, err := HistoryDates("2024-01-10", DefaultHistoryDays)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-01-09", "2024-01-08", "2024-01-07", "2024-01-06", "2024-01-05", "2024-01-04",
	}, dates)

	// Month boundary is plain day subtraction.
	dates, err = HistoryDates("2024-03-02", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-02-29", "2024-02-28"}, dates)

	_, err = HistoryDates("not-a-date", DefaultHistoryDays)
	assert.Error(t, err)
}
