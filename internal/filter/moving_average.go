package filter

// MovingAverage keeps the running mean of the last N samples. The mean is
// always divided by N, so the first N-1 readings are biased toward zero.
type MovingAverage struct {
	window int
	values []float64
	index  int
	sum    float64
}

func NewMovingAverage(window int) *MovingAverage {
	if window <= 0 {
		panic("filter: moving average window must be > 0")
	}
	return &MovingAverage{
		window: window,
		values: make([]float64, window),
	}
}

func (m *MovingAverage) Add(v float64) {
	slot := m.index % m.window
	if m.index >= m.window {
		m.sum -= m.values[slot]
	}
	m.values[slot] = v
	m.sum += v
	m.index++
}

func (m *MovingAverage) Get() float64 {
	return m.sum / float64(m.window)
}

// Count reports how many samples have been pushed since the last reset.
func (m *MovingAverage) Count() int {
	return m.index
}

func (m *MovingAverage) Reset() {
	for i := range m.values {
		m.values[i] = 0
	}
	m.index = 0
	m.sum = 0
}
