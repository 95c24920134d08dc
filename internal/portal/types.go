package portal

import "encoding/json"

// SearchPage is one page of advance-search results.
type SearchPage struct {
	Records []map[string]any
	Total   int
}

// TimelineItem is one approval-dates entry for a proposal.
type TimelineItem struct {
	Status  string `json:"status"`
	Date    string `json:"approvalDate"`
	Remarks string `json:"remarks"`
}

// Document is one uploaded document reference.
type Document struct {
	Type string `json:"document_type"`
	Name string `json:"document_name"`
	URL  string `json:"document_url"`
}

// FormSet holds the clearance form payloads keyed by form kind.
type FormSet map[string]json.RawMessage

// State is one entry from the state master list.
type State struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}
