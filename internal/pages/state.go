// Package pages builds the view model of each portal page from backend reads.
package pages

type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// State is the outcome of one page fetch. Failed carries a retry hint; requesting
// the page again is the retry.
type State[T any] struct {
	Status Status `json:"status"`
	Data   *T     `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Retry  bool   `json:"retry,omitempty"`

	err error
}

func Loading[T any]() State[T] { return State[T]{Status: StatusLoading} }

func Loaded[T any](v T) State[T] { return State[T]{Status: StatusLoaded, Data: &v} }

func Failed[T any](err error) State[T] {
	return State[T]{Status: StatusFailed, Error: err.Error(), Retry: true, err: err}
}

// Err is the underlying error of a Failed state.
func (s State[T]) Err() error { return s.err }
