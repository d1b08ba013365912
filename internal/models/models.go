package models

import "time"

// Record is one scraped story, normalized across backends.
type Record struct {
	Source    string
	Content   []byte
	URL       string
	Date      string
	Timestamp time.Time
	Stanford  int
}

// Window bounds the stories eligible for a query: newer than After,
// older than Before. Inclusivity of Before depends on the backend.
type Window struct {
	After  time.Time
	Before time.Time
}

// StoredDocument is a story as the scraper writes it to the document store.
type StoredDocument struct {
	ID        interface{} `bson:"_id,omitempty"`
	Source    string      `bson:"source"`
	Content   []byte      `bson:"content"`
	URL       string      `bson:"url"`
	Date      string      `bson:"date"`
	DateAdded time.Time   `bson:"date_added"`
}

func (d StoredDocument) Record() Record {
	return Record{
		Source:    d.Source,
		Content:   d.Content,
		URL:       d.URL,
		Date:      d.Date,
		Timestamp: d.DateAdded,
	}
}

// IndexedDocument is the _source of a hit in the news index.
type IndexedDocument struct {
	Source        string `json:"source"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	Date          string `json:"date"`
	PublishedDate string `json:"published_date"`
	Stanford      int    `json:"stanford"`
}

var publishedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (d IndexedDocument) Record() Record {
	rec := Record{
		Source:   d.Source,
		Content:  []byte(d.Content),
		URL:      d.URL,
		Date:     d.Date,
		Stanford: d.Stanford,
	}
	for _, layout := range publishedDateLayouts {
		if ts, err := time.Parse(layout, d.PublishedDate); err == nil {
			rec.Timestamp = ts
			break
		}
	}
	return rec
}
