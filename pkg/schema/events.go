package schema

// Business event names tracked by the entity mutation layer. The set is closed
// for the engine's bundled automations but extensible by tenant configuration:
// a definition may bind to any event name its surrounding system emits.
const (
	EventContactCreated     = "contact.created"
	EventContactUpdated     = "contact.updated"
	EventDealCreated        = "deal.created"
	EventDealUpdated        = "deal.updated"
	EventEmailOpened        = "email.opened"
	EventEmailClicked       = "email.clicked"
	EventTaskCompleted      = "task.completed"
	EventInteractionCreated = "interaction.created"
)

// KnownEvent reports whether name is one of the bundled event names. Custom
// event names are still legal triggers; callers use this to warn, not reject.
func KnownEvent(name string) bool {
	switch name {
	case EventContactCreated, EventContactUpdated,
		EventDealCreated, EventDealUpdated,
		EventEmailOpened, EventEmailClicked,
		EventTaskCompleted, EventInteractionCreated:
		return true
	}
	return false
}

// ExecutionStatus is the terminal status of one run's audit record.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)
