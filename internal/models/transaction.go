// internal/models/transaction.go
package models

// TxState is the lifecycle state of an unlock or activation transaction.
//
//	AwaitingPaymentInput -> Processing -> {Succeeded, Failed}
//
// Failed re-arms to AwaitingPaymentInput on user retry; Succeeded is terminal
// and carries exactly one side effect.
type TxState string

const (
	TxAwaitingPaymentInput TxState = "AWAITING_PAYMENT_INPUT"
	TxProcessing           TxState = "PROCESSING"
	TxSucceeded            TxState = "SUCCEEDED"
	TxFailed               TxState = "FAILED"
	TxCancelled            TxState = "CANCELLED"
)

// Terminal reports whether the state ends the transaction for good. Failed is
// not terminal: the payer may re-enter the payment loop.
func (s TxState) Terminal() bool {
	return s == TxSucceeded || s == TxCancelled
}
