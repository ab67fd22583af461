package runtime

import "github.com/0xMiden/MultiSig/pkg/miden"

// Message is a unit of work for the runtime worker. Every request message
// carries a dedicated single-use reply channel created by the sender; give
// it a buffer of one so the worker never blocks on an abandoned caller.
type Message interface {
	isMessage()
}

// CreateMultisigAccount asks the wallet to create and track a multisig
// account.
type CreateMultisigAccount struct {
	Threshold     uint32
	PubKeyCommits []miden.Word
	Reply         chan<- AccountReply
}

// AccountReply carries the created account or the creation error.
type AccountReply struct {
	Account *miden.Account
	Err     error
}

// GetConsumableNotes asks for the notes available to spend, optionally
// filtered by the consuming account.
type GetConsumableNotes struct {
	Account *miden.AccountID
	Reply   chan<- NotesReply
}

// NotesReply carries the consumable note list or the lookup error.
type NotesReply struct {
	Notes []miden.ConsumableNote
	Err   error
}

// ProposeMultisigTx asks for a dry run of the transaction request: the
// expected outcome is the unauthorized-execution summary that approvers
// will sign.
type ProposeMultisigTx struct {
	Account   miden.AccountID
	TxRequest *miden.TransactionRequest
	Reply     chan<- SummaryReply
}

// SummaryReply carries the transaction summary to sign or the dry run
// error.
type SummaryReply struct {
	Summary miden.TransactionSummary
	Err     error
}

// ProcessMultisigTx asks for the final execution and chain submission of a
// transaction whose signature collection completed. Signatures is the
// positional vector: index i belongs to the approver with approver_index i,
// nil marks an approver that has not signed.
type ProcessMultisigTx struct {
	Account    miden.AccountID
	TxRequest  *miden.TransactionRequest
	TxSummary  miden.TransactionSummary
	Signatures []miden.Signature
	Reply      chan<- ResultReply
}

// ResultReply carries the executed transaction result or the processing
// error.
type ResultReply struct {
	Result miden.TransactionResult
	Err    error
}

// shutdown makes the worker close the client and exit. Posted by Stop.
type shutdown struct{}

func (CreateMultisigAccount) isMessage() {}
func (GetConsumableNotes) isMessage()    {}
func (ProposeMultisigTx) isMessage()     {}
func (ProcessMultisigTx) isMessage()     {}
func (shutdown) isMessage()              {}
