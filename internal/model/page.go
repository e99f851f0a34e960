package model

// ページングの既定値。
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PageRequest はページング指定。
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize は不正値を既定値に置き換え、limitをmaxLimitで頭打ちにする。
// maxLimitが0以下の場合は上限を設けない。
func (p PageRequest) Normalize(maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset はSQLのOFFSET値を返す。
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page はページング済みの結果。
type Page[T any] struct {
	Docs        []T  `json:"docs"`
	TotalDocs   int  `json:"totalDocs"`
	Limit       int  `json:"limit"`
	Page        int  `json:"page"`
	TotalPages  int  `json:"totalPages"`
	HasPrevPage bool `json:"hasPrevPage"`
	HasNextPage bool `json:"hasNextPage"`
	PrevPage    *int `json:"prevPage"`
	NextPage    *int `json:"nextPage"`
}

// NewPage はdocsと総件数からPageを組み立てる。
func NewPage[T any](docs []T, totalDocs int, req PageRequest) *Page[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := 0
	if req.Limit > 0 {
		totalPages = (totalDocs + req.Limit - 1) / req.Limit
	}
	p := &Page[T]{
		Docs:        docs,
		TotalDocs:   totalDocs,
		Limit:       req.Limit,
		Page:        req.Page,
		TotalPages:  totalPages,
		HasPrevPage: req.Page > 1,
		HasNextPage: req.Page < totalPages,
	}
	if p.HasPrevPage {
		prev := req.Page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := req.Page + 1
		p.NextPage = &next
	}
	return p
}
