package domain

import "time"

// Item is a listed remote object (pull request, email, feed entry) selected
// by a filter, before its detail payload is retrieved.
type Item struct {
	ID          string
	Title       string
	Origin      string
	URL         string
	Description string
	CreatedAt   time.Time
	// Meta holds whatever the owning source needs to fetch the detail payload.
	Meta map[string]string
}

type Result struct {
	Identifier string   `json:"identifier"      yaml:"identifier"`
	Title      string   `json:"title"           yaml:"title"`
	Origin     string   `json:"origin"          yaml:"origin"`
	Locator    string   `json:"locator"         yaml:"locator"`
	Summary    string   `json:"summary"         yaml:"summary"`
	Error      *Failure `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failure is the serializable record of an item that could not be summarized.
type Failure struct {
	Kind    string `json:"kind"    yaml:"kind"`
	Phase   string `json:"phase"   yaml:"phase"`
	Message string `json:"message" yaml:"message"`
}

// Report is the ordered collection of results produced by one run.
type Report []Result

func (r Report) Failed() int {
	var n int
	for _, res := range r {
		if res.Error != nil {
			n++
		}
	}
	return n
}

func NewResult(item Item, summary string) Result {
	return Result{
		Identifier: item.ID,
		Title:      item.Title,
		Origin:     item.Origin,
		Locator:    item.URL,
		Summary:    summary,
	}
}
