package core

// Source names the strategy that produced a record.
type Source string

const (
	SourceAPI    Source = "api"
	SourceScrape Source = "scrape"
)

// RawRecord is the unnormalized upstream response.
type RawRecord struct {
	Source Source

	// Status is the API envelope status; 1 means usable data.
	Status int
	// Data is the decoded API "Data" value: an object keyed by upstream field
	// name, or a list of {"name", "value"} entries. Nil when absent. Numbers
	// are json.Number.
	Data any

	// HTML is the search result page for scrape records.
	HTML []byte

	// Body is the raw payload as received, kept for archiving.
	Body []byte
}
