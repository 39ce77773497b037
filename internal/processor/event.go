package processor

// Event is a verified webhook event. The set of variants is closed: only this package can add one.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

type Meta struct {
	ID   string
	Type string
}

func (m Meta) EventID() string   { return m.ID }
func (m Meta) EventType() string { return m.Type }

// TransactionID is read from the intent metadata. It lets an event that races the intent id being
// stored still find its transaction.
type IntentSucceeded struct {
	Meta
	IntentID      string
	TransactionID string
	ChargeID      string
	Amount        int64
}

type IntentFailed struct {
	Meta
	IntentID      string
	TransactionID string
	Reason        string
}

type AccountUpdated struct {
	Meta
	AccountID        string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

type TransferCreated struct {
	Meta
	TransferID        string
	Amount            int64
	Destination       string
	SourceTransaction string
	PaymentIntentID   string
}

// Ignored is a verified event of a type settlement does not act on.
type Ignored struct {
	Meta
}

func (IntentSucceeded) isEvent() {}
func (IntentFailed) isEvent()    {}
func (AccountUpdated) isEvent()  {}
func (TransferCreated) isEvent() {}
func (Ignored) isEvent()         {}
