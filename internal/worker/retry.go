package worker

import "time"

// RetryPolicy — повтор задачи при временных ошибках YNAB.
type RetryPolicy struct {
	MaxAttempts  int           // default: 3
	InitialDelay time.Duration // default: 5s
	MaxDelay     time.Duration // default: 1m
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 5 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Minute
	}
	return p
}

// backoff — экспоненциальная задержка перед попыткой attempt+1.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}
