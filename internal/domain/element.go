package domain

import (
	"time"

	"github.com/google/uuid"
)

// Element is one testcase result within a batch
type Element struct {
	ID          uuid.UUID `db:"id" json:"id"`
	BatchID     uuid.UUID `db:"batch_id" json:"batchId"`
	SuiteID     uuid.UUID `db:"suite_id" json:"suiteId"`
	Testcase    string    `db:"testcase" json:"testcase"`
	MessageHash string    `db:"message_hash" json:"messageHash"`
	SubmittedAt time.Time `db:"submitted_at" json:"submittedAt"`
}

// ElementRef points to a baseline element and the message it carried
type ElementRef struct {
	ElementID   uuid.UUID
	BatchID     uuid.UUID
	MessageHash string
}

// ElementUpsert is the result of adding an element to an open batch
type ElementUpsert struct {
	Element *Element
	// ReplacedHash is the previous message of a resubmitted testcase
	ReplacedHash string
}

// Message is a content-addressed submitted payload
type Message struct {
	Hash      string    `db:"hash" json:"hash"`
	Size      int64     `db:"size" json:"size"`
	RefCount  int       `db:"ref_count" json:"refCount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MessageRef is returned by the message store
type MessageRef struct {
	Hash string
	// Reused is true when the payload was already stored
	Reused bool
	// Testcase is the normalized testcase name carried by the payload
	Testcase string
}

// AssertionKeyPrefix separates assertion keys from result keys in Keys
const AssertionKeyPrefix = "assert:"

// ElementData is the decoded form of a message
type ElementData struct {
	Testcase   string             `json:"testcase"`
	Results    map[string]Value   `json:"results"`
	Assertions map[string]Value   `json:"assertions,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Keys returns the compared keys, assertions prefixed to keep them apart
func (d *ElementData) Keys() map[string]Value {
	out := make(map[string]Value, len(d.Results)+len(d.Assertions))
	for k, v := range d.Results {
		out[k] = v
	}
	for k, v := range d.Assertions {
		out[AssertionKeyPrefix+k] = v
	}
	return out
}

// Submission is one testcase result received at intake
type Submission struct {
	TeamSlug  string
	SuiteSlug string
	Version   string
	Testcase  string
	Payload   []byte
}
