package mirror

import "fmt"

type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// FileResult is the outcome of uploading one file.
type FileResult struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	SHA    string `json:"sha,omitempty"`
	Size   int64  `json:"size"`
	Err    error  `json:"-"`
}

func (r FileResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %v", r.Status, r.Path, r.Err)
	}
	return fmt.Sprintf("%s %s", r.Status, r.Path)
}

// Summary counts results by status.
type Summary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func Summarize(results []FileResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusCreated:
			s.Created++
		case StatusUpdated:
			s.Updated++
		case StatusUnchanged:
			s.Unchanged++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Writes is the number of remote writes the results represent.
func (s Summary) Writes() int {
	return s.Created + s.Updated
}

func (s Summary) Total() int {
	return s.Created + s.Updated + s.Unchanged + s.Failed
}
