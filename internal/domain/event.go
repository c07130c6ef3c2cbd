package domain

import "time"

// Event is a fire-and-forget lifecycle or diagnostic notification.
// Delivery is in-process and synchronous: subscribers present at emit time
// receive it, later subscribers miss it.
type Event struct {
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}

// Event types published by the engine.
const (
	EventIndexSetupStarted    = "index_setup_started"
	EventIndexLoaded          = "index_loaded"
	EventIndexCreationStarted = "index_creation_started"
	EventPassagesSplit        = "passages_split"
	EventIndexCreated         = "index_created"
	EventIndexSetupCompleted  = "index_setup_completed"
	EventRetrievalStarted     = "retrieval_started"
	EventRetrievalCompleted   = "retrieval_completed"
	EventGenerationStarted    = "generation_started"
	EventGenerationCompleted  = "generation_completed"
	EventGenerationFailed     = "generation_failed"
	EventOperationStarted     = "operation_started"
	EventOperationFinished    = "operation_finished"
)
