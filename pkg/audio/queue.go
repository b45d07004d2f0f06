package audio

import "sync"

// FrameQueue is an unbounded FIFO of frames shared between the capture
// callback (single producer) and the consumer loop (single consumer).
//
// Push never blocks beyond a short mutex hold and never drops frames, so the
// capture callback stays real-time safe no matter how long the consumer is
// busy with transcription, response generation or playback.
type FrameQueue struct {
	mu     sync.Mutex
	frames []AudioFrame
	head   int
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{}
}

// Push appends f to the tail of the queue.
func (q *FrameQueue) Push(f AudioFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
}

// TryPop removes and returns the oldest frame. The boolean is false when the
// queue is empty.
func (q *FrameQueue) TryPop() (AudioFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.frames) {
		return AudioFrame{}, false
	}
	f := q.frames[q.head]
	q.frames[q.head] = AudioFrame{}
	q.head++
	// Compact once the consumed prefix dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.frames) {
		n := copy(q.frames, q.frames[q.head:])
		clear(q.frames[n:])
		q.frames = q.frames[:n]
		q.head = 0
	}
	return f, true
}

// Flush discards every queued frame and returns how many were dropped.
func (q *FrameQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames) - q.head
	q.frames = nil
	q.head = 0
	return n
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) - q.head
}
