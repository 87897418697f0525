package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	ActionsSigned    Counter
	SigningFailed    Counter
	ActionsSubmitted Counter
	SubmitFailed     Counter
	InfoRequests     Counter
	InfoFailed       Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		ActionsSigned:    n,
		SigningFailed:    n,
		ActionsSubmitted: n,
		SubmitFailed:     n,
		InfoRequests:     n,
		InfoFailed:       n,
	}
}
