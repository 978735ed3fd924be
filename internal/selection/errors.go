package selection

// Failure is a structured selection error. Code is stable for callers and
// UIs; Message explains it to an operator.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f *Failure) Error() string { return f.Code + ": " + f.Message }

// Is matches on Code so a Failure with a specific message still satisfies
// errors.Is against the sentinel.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

var (
	ErrNoAccounts           = &Failure{Code: "no_accounts", Message: "No sending accounts configured"}
	ErrNoCapacity           = &Failure{Code: "no_capacity", Message: "All accounts are inactive or at their limit"}
	ErrInsufficientCapacity = &Failure{Code: "insufficient_capacity", Message: "Not enough remaining capacity for this batch"}
)

func fail(base *Failure, msg string) *Failure {
	return &Failure{Code: base.Code, Message: msg}
}
