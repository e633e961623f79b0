package utils

// fibonacci returns successive Fibonacci numbers starting from 1
func fibonacci() func() int64 {
	a, b := int64(0), int64(1)
	return func() int64 {
		a, b = b, a+b
		return a
	}
}

// FibonacciNext returns next number in Fibonacci sequence greater than start
func FibonacciNext(start int64) int64 {
	fib := fibonacci()
	num := fib()
	for num <= start {
		num = fib()
	}
	return num
}

// Backoff spaces retries of a failing operation along the Fibonacci sequence,
// unit is one attempt slot. It is not safe for concurrent use.
type Backoff struct {
	// Max bounds the delay, a delay above it starts over from 1.
	Max int64

	delay int64
	// due counts down the ticks left before the next attempt.
	due int64
}

// Fail records a failed attempt and return the ticks to wait.
func (b *Backoff) Fail() int64 {
	b.delay = FibonacciNext(b.delay)
	if b.Max > 0 && b.delay > b.Max {
		b.delay = 1
	}
	b.due = b.delay
	return b.delay
}

// Reset forgets previous failures.
func (b *Backoff) Reset() {
	b.delay = 0
	b.due = 0
}

// Ready advances one tick and report whether an attempt may run.
func (b *Backoff) Ready() bool {
	if b.due <= 0 {
		return true
	}
	b.due--
	return b.due <= 0
}
