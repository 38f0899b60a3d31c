package model

import "strings"

type TabID string
type ContextID string

// MessageKind identifies an inbound message from a page context.
type MessageKind string

const (
	MsgPageData      MessageKind = "PAGE_DATA_RECEIVED"
	MsgSessionSignal MessageKind = "SESSION_SIGNAL"
)

// Decision is the classifier verdict for a page.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionBlock Decision = "BLOCK"
)

// ShortFormTitle is the fixed generic title carried by a short-form flag
// summary. Repeated entries into the same item compare equal against it.
const ShortFormTitle = "Short-form video"

// PageSummary is the content summary extracted from one page. All fields
// except URL are optional.
type PageSummary struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	H1          string `json:"h1,omitempty"`
	URL         string `json:"url"`
	Keywords    string `json:"keywords,omitempty"`
	BodyText    string `json:"bodyText,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
}

// Submittable reports whether the summary is worth sending: a network URL
// plus at least one meaningful content field.
func (s PageSummary) Submittable() bool {
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return false
	}
	return s.Title != "" || s.H1 != "" || s.Description != "" || s.SearchQuery != ""
}

// ShortFormFlag builds the sentinel summary for continuous short-form
// content. It carries only the URL and the fixed generic title.
func ShortFormFlag(url string) PageSummary {
	return PageSummary{Title: ShortFormTitle, URL: url}
}

// ExtractionKind distinguishes the three outcomes of one extraction attempt.
type ExtractionKind int

const (
	ExtractNone ExtractionKind = iota
	ExtractPage
	ExtractShortForm
)

// Extraction is the result of reading one page snapshot.
type Extraction struct {
	Kind    ExtractionKind
	Summary PageSummary
}

// Message is the in-process envelope from a page context to the router.
type Message struct {
	Kind    MessageKind
	Tab     TabID
	Summary PageSummary
	// Entering is meaningful for MsgSessionSignal only: true while the
	// page context is on short-form content.
	Entering bool
	URL      string
}

// LogEvent is the audit record posted to the log endpoint.
type LogEvent struct {
	Title    string   `json:"title"`
	Reason   string   `json:"reason"`
	Decision Decision `json:"decision"`
	URL      string   `json:"url"`
}

// ShortsSession aggregates one continuous short-form viewing episode.
// Absence of the record means no session is active.
type ShortsSession struct {
	Count     int
	StartedAt int64
}

// SearchContext attributes a later page view to a preceding search query.
type SearchContext struct {
	Query     string
	Timestamp int64
}
