package kafka

// ackTracker is the Assigner handed to a rebalance callback. It records
// whether the callback acknowledged the event.
type ackTracker struct {
	apply func([]TopicPartition) error
	acked bool
}

func (a *ackTracker) Assign(partitions []TopicPartition) error {
	if err := a.apply(partitions); err != nil {
		return err
	}
	a.acked = true
	return nil
}

// dispatchRebalance runs cb for ev. apply installs the acknowledged
// assignment in the transport. Without a callback the event is applied as is.
func dispatchRebalance(cb RebalanceCallback, ev RebalanceEvent, apply func([]TopicPartition) error) error {
	if cb == nil {
		switch ev.Code {
		case ErrAssignPartitions:
			return apply(ev.Partitions)
		case ErrRevokePartitions:
			return apply(nil)
		}
		return nil
	}

	t := &ackTracker{apply: apply}
	if err := cb.OnRebalance(t, ev); err != nil {
		return err
	}

	needsAck := ev.Code == ErrAssignPartitions || ev.Code == ErrRevokePartitions
	if needsAck && !t.acked {
		return ErrRebalanceNotAcknowledged
	}

	return nil
}

// assignmentSet is the acknowledged assignment of a transport. Callers hold
// the transport's lock.
type assignmentSet map[TopicPartition]struct{}

func newAssignmentSet(partitions []TopicPartition) assignmentSet {
	s := make(assignmentSet, len(partitions))
	for _, tp := range partitions {
		s[tp] = struct{}{}
	}
	return s
}

func (s assignmentSet) has(tp TopicPartition) bool {
	_, ok := s[tp]
	return ok
}

func (s assignmentSet) list() []TopicPartition {
	out := make([]TopicPartition, 0, len(s))
	for tp := range s {
		out = append(out, tp)
	}
	SortTopicPartitions(out)
	return out
}
