package billing

// Source records which path confirmed a payment.
type Source string

const (
	SourceVerification Source = "payment_verification"
	SourceWebhook      Source = "webhook"
	SourceAdmin        Source = "admin_reconcile"
	SourceRepair       Source = "repair"
)

// TerminalStatus is the success status a path writes when it wins the
// transition. Both values count as terminal-success.
func (s Source) TerminalStatus() OrderStatus {
	if s == SourceWebhook {
		return OrderPaid
	}
	return OrderCompleted
}
