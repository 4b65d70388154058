package domain

import "time"

// Quote is the latest daily quote for a ticker.
type Quote struct {
	Symbol   string
	Name     string
	Currency string
	Time     time.Time
	Close    float64
	High     float64
	Low      float64
	Volume   int64
}

// Bar is one daily closing price in a price history.
type Bar struct {
	Time  time.Time
	Close float64
}

// Article is one news item returned by the news lookup.
type Article struct {
	Source      string
	Title       string
	URL         string
	PublishedAt time.Time
}

// Rate is a computed cross rate between two currencies.
type Rate struct {
	From  string
	To    string
	Value float64
	Time  time.Time
}
