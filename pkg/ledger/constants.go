package ledger

const (
	operationApplyDelta = "apply_delta"

	operationStatusOK        = "ok"
	operationStatusError     = "error"
	operationStatusDuplicate = "duplicate"
)
