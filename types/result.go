package types

// ActionResult is the outcome of applying an action to a model. Non-success
// results are normal game-logic rejections, not errors: the operation is
// still logged for replay fidelity, but the model is left untouched.
type ActionResult int32

const (
	Success ActionResult = iota
	NoSuchMember
	OperationNotPermitted
	OperationStale
	UnknownError
)

func (r ActionResult) IsSuccess() bool { return r == Success }

func (r ActionResult) String() string {
	switch r {
	case Success:
		return "Success"
	case NoSuchMember:
		return "NoSuchMember"
	case OperationNotPermitted:
		return "OperationNotPermitted"
	case OperationStale:
		return "OperationStale"
	case UnknownError:
		return "UnknownError"
	default:
		return "InvalidResult"
	}
}
