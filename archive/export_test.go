package archive

import "time"

// ExchangeWithThreshold exposes the sidebar cap to external tests.
const ExchangeWithThreshold = exchangeWithThreshold

// SetDinozFetchInterval shortens the dinoz pacing for tests and returns a
// restore function.
func SetDinozFetchInterval(d time.Duration) (restore func()) {
	prev := dinozFetchInterval
	dinozFetchInterval = d
	return func() { dinozFetchInterval = prev }
}
