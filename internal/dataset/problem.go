package dataset

import "strings"

// Problem fields.
const (
	FieldPath    = "dataset.path"
	FieldAdapter = "dataset.adapter"
	FieldStore   = "dataset.store"
	FieldColumn  = "dataset.column"
	FieldIndex   = "dataset.categories"
)

// Problem is one reason a dataset is unusable.
type Problem struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func (p Problem) String() string {
	return p.Field + ": " + p.Message
}

// Problems is every problem found by a validation pass. A nil or empty value
// means the dataset is ready.
type Problems []Problem

func (ps Problems) Error() string {
	msgs := make([]string, len(ps))
	for i, p := range ps {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, "\n")
}

// Err returns ps as an error, or nil when there are no problems.
func (ps Problems) Err() error {
	if len(ps) == 0 {
		return nil
	}
	return ps
}
