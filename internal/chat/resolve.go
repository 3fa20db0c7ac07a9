package chat

// ContactSet is a roster indexed by contact ID, used for role lookups
// during counterpart resolution.
type ContactSet map[int64]Contact

// NewContactSet builds a ContactSet from a fetched roster.
func NewContactSet(contacts []Contact) ContactSet {
	set := make(ContactSet, len(contacts))
	for _, c := range contacts {
		set[c.ID] = c
	}
	return set
}

// ResolveCounterpart decides which external party a message belongs to,
// relative to the local identity.
//
// An inbound message identifies its sender; an outbound message its
// receiver. When neither side is the local identity the local account
// must be an operator sharing an inbox with peer operators: if the
// sender is a known non-operator contact, a peer handled a
// parent-authored message and the counterpart is the sender; otherwise
// the sender is assumed to be a peer operator and the counterpart is
// the receiver, provided the receiver is a known non-operator. Anything
// else returns ErrAmbiguousAttribution.
func ResolveCounterpart(msg Message, localID int64, roster ContactSet) (int64, error) {
	switch {
	case msg.ReceiverID == localID:
		return msg.SenderID, nil
	case msg.SenderID == localID:
		return msg.ReceiverID, nil
	}

	if c, ok := roster[msg.SenderID]; ok && !c.Operator {
		return msg.SenderID, nil
	}
	if c, ok := roster[msg.ReceiverID]; ok && !c.Operator {
		return msg.ReceiverID, nil
	}
	return 0, ErrAmbiguousAttribution
}
