package session

// Queue buffers encoded command frames issued before a master connection
// exists. It is drained, in order, into the first master.
type Queue struct {
	frames [][]byte
}

func (q *Queue) Push(frame []byte) {
	q.frames = append(q.frames, frame)
}

func (q *Queue) Len() int {
	return len(q.frames)
}

// Drain hands every queued frame to send in FIFO order and empties the
// queue. Frames that fail to send are dropped along with the rest; the
// caller treats the failure as a dead connection.
func (q *Queue) Drain(send func([]byte) error) (int, error) {
	frames := q.frames
	q.frames = nil
	for i, f := range frames {
		if err := send(f); err != nil {
			return i, err
		}
	}
	return len(frames), nil
}

func (q *Queue) Clear() {
	q.frames = nil
}
