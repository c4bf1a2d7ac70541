package jenkins

import "fmt"

// NotAvailable is the sentinel standing in for any parameter Jenkins did not
// report for a build.
const NotAvailable = "N/A"

const parametersActionClass = "hudson.model.ParametersAction"

// Build parameters the reporter tracks on downstream builds.
const (
	ParamOSVersion    = "UBUNTU_VERSION"
	ParamVMGeneration = "VM_GENERATION"
)

type crumbResponse struct {
	Crumb string `json:"crumb"`
}

// JobInfo is the subset of a job's JSON representation the reporter reads.
type JobInfo struct {
	Builds []BuildRef `json:"builds"`
}

// BuildRef identifies one build in a job's build list. Timestamp is
// milliseconds since the Unix epoch, as reported by Jenkins.
type BuildRef struct {
	Number    int   `json:"number"`
	Timestamp int64 `json:"timestamp"`
}

// BuildInfo is the subset of a build's JSON metadata the reporter reads.
// Result is empty while a build is still running.
type BuildInfo struct {
	Result  string   `json:"result"`
	Actions []Action `json:"actions"`
}

type Action struct {
	Class      string      `json:"_class"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one entry of a build's ParametersAction. Values are strings for
// ordinary parameters but may arrive as numbers or booleans.
type Parameter struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// BuildParams holds the resolved values of the tracked parameters. Each field
// resolves independently; a field whose parameter is absent, or whose build
// lacks a parameters action entirely, holds NotAvailable.
type BuildParams struct {
	OSVersion    string
	VMGeneration string
}

// Params extracts the tracked parameters from the build's action list.
func (b *BuildInfo) Params() BuildParams {
	params := BuildParams{
		OSVersion:    NotAvailable,
		VMGeneration: NotAvailable,
	}
	for _, action := range b.Actions {
		if action.Class != parametersActionClass {
			continue
		}
		for _, parameter := range action.Parameters {
			if parameter.Value == nil {
				continue
			}
			switch parameter.Name {
			case ParamOSVersion:
				params.OSVersion = fmt.Sprintf("%v", parameter.Value)
			case ParamVMGeneration:
				params.VMGeneration = fmt.Sprintf("%v", parameter.Value)
			}
		}
		break
	}
	return params
}
