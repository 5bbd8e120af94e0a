package mqtt

import "log"

// pendingMsg is a serialized MQTT message held for replay after reconnection.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds the most recent messages published while disconnected.
// When full, the oldest message is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs    []pendingMsg
	start   int
	n       int
	dropped int
}

func newOutbox(capacity int) *outbox {
	return &outbox{msgs: make([]pendingMsg, capacity)}
}

func (o *outbox) add(msg pendingMsg) {
	size := len(o.msgs)
	if size == 0 {
		o.dropped++
		return
	}
	if o.n < size {
		o.msgs[(o.start+o.n)%size] = msg
		o.n++
		return
	}
	if o.dropped == 0 {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
	}
	o.msgs[o.start] = msg
	o.start = (o.start + 1) % size
	o.dropped++
}

// take removes and returns every held message, oldest first, together with
// the number dropped since the previous take.
func (o *outbox) take() ([]pendingMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.n == 0 {
		return nil, dropped
	}
	out := make([]pendingMsg, o.n)
	for i := range out {
		out[i] = o.msgs[(o.start+i)%len(o.msgs)]
		o.msgs[(o.start+i)%len(o.msgs)] = pendingMsg{}
	}
	o.start, o.n = 0, 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.n
}
