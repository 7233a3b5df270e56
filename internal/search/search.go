package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPRD     ResultType = "prd"
	ResultComment ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	PRDID      string     `json:"prdId"`
	TeamID     string     `json:"teamId"`
	Visibility string     `json:"visibility,omitempty"`
}

// Query describes a search request. PublicOnly restricts hits to publicly
// visible PRDs, for unauthenticated gallery searches.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterTeamID string
	Limit        int
	Offset       int
	PublicOnly   bool
}

// Response is the envelope returned by the search endpoints.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPRD(p PRDRecord) error
	IndexComment(c CommentRecord) error
	DeletePRD(id string) error
}

// PRDRecord is the data indexed for a PRD.
type PRDRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	TeamID     string `json:"teamId"`
	Status     string `json:"status"`
	Visibility string `json:"visibility"`
}

// CommentRecord is the data indexed for a durable comment.
type CommentRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Section    string `json:"section"`
	PRDID      string `json:"prdId"`
	TeamID     string `json:"teamId"`
	Visibility string `json:"visibility"`
}
