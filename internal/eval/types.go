package eval

// #region metric
// Metric captures a single validation check result.
type Metric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion metric

// #region result
// Result is the output of post-run validation.
type Result struct {
	Passed  bool
	Metrics []Metric
	Reason  string
}

// #endregion result
