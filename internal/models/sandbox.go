package models

type ResultType string

const (
	ResultScalar    ResultType = "scalar"
	ResultRecords   ResultType = "records"
	ResultAggregate ResultType = "aggregate"
)

// Record is one serialised row. Values are primitives or strings.
type Record map[string]interface{}

// SandboxResult is the outcome of one validated execution. On failure Reason
// is set and Layer names the rejecting check when validation failed.
type SandboxResult struct {
	Success     bool        `json:"success"`
	Value       interface{} `json:"value,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Layer       string      `json:"layer,omitempty"`
	ResultType  ResultType  `json:"resultType,omitempty"`
	ResultCount int         `json:"resultCount"`
	Truncated   bool        `json:"truncated,omitempty"`
}
