package types

// Intent is a parsed console command.
type Intent struct {
	Verb string   `json:"verb"`
	Args []string `json:"args,omitempty"`
}

// Arg returns the i-th argument or "".
func (in Intent) Arg(i int) string {
	if i < 0 || i >= len(in.Args) {
		return ""
	}
	return in.Args[i]
}

// Result is the outcome of one console step.
type Result struct {
	Output []string     `json:"output"`
	Check  *CheckResult `json:"check,omitempty"`
	Trace  []string     `json:"trace,omitempty"`
}
