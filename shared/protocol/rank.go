package protocol

// Query parameter names understood by GET /rank.
const (
	ParamSortBy = "sort-by"
	ParamOrder  = "order"
)

// Accepted sort-by / order values.
const (
	SortByRank = "rank"

	OrderAscending  = "ascending"
	OrderDescending = "descending"
)

// PlayerView is the public part of a player record.
type PlayerView struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname"`
	TotalScore int    `json:"totalScore"`
}

// RankEntry is a single participant's position on the board.
type RankEntry struct {
	Player     PlayerView `json:"player"`
	Rank       int        `json:"rank"`
	Percentage int        `json:"percentage"`
}

// AddScore is the body of POST /ranks/my/score.
type AddScore struct {
	Score int `json:"score"`
}

// RankBoard is pushed on the /ranks/ws stream after every score change.
type RankBoard struct {
	Ranks []RankEntry `json:"ranks"`
}
