package model

// ResultRow is one experiment's aggregated output: its spec joined with the
// metrics the training process persisted. Rows are rebuilt from disk on every
// read and never cached.
type ResultRow struct {
	ID    string          `json:"id"`
	Spec  ExperimentSpec  `json:"spec"`
	State ExperimentState `json:"state"`

	// Metrics holds the decoded metric entries from the experiment's score
	// file, one map per recorded step/epoch. Nil when Missing is true.
	Metrics []map[string]any `json:"metrics,omitempty"`

	// Missing is set when the experiment has no readable result file. A
	// SUCCEEDED experiment with Missing set indicates a data-quality
	// problem, not a read error.
	Missing bool `json:"missing,omitempty"`

	// Note explains why the row has no metrics (file absent, decode error).
	Note string `json:"note,omitempty"`
}
