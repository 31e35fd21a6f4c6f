package dispatch

// NotificationKind is the callback a notification will invoke.
type NotificationKind int

const (
	NotifyMessage NotificationKind = iota + 1
	NotifySubscribed
	NotifyUnsubscribed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyMessage:
		return "message"
	case NotifySubscribed:
		return "subscribed"
	case NotifyUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// MetricsHook lets services bridge dispatcher activity to their
// observability stack without the core depending on one.
type MetricsHook interface {
	OnEvent(kind EventKind)
	OnNotification(kind NotificationKind)
	OnDeadLetter()
	OnDrop()
	OnCommandFailure(command string)
	OnReconnect()
	OnConnectFailure()
	OnResubscribe(resubscribed, failures int)
	OnCallbackPanic(kind NotificationKind)
}

type noopMetrics struct{}

func (noopMetrics) OnEvent(EventKind)                {}
func (noopMetrics) OnNotification(NotificationKind)  {}
func (noopMetrics) OnDeadLetter()                    {}
func (noopMetrics) OnDrop()                          {}
func (noopMetrics) OnCommandFailure(string)          {}
func (noopMetrics) OnReconnect()                     {}
func (noopMetrics) OnConnectFailure()                {}
func (noopMetrics) OnResubscribe(int, int)           {}
func (noopMetrics) OnCallbackPanic(NotificationKind) {}
