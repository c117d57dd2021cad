package auth

// Advisory is the outcome of a best-effort secondary check. A failed
// advisory never fails the primary operation, it is logged and the
// operation proceeds with its default.
type Advisory struct {
	Err error
}

func (a Advisory) Failed() bool { return a.Err != nil }
