package main

// matchTable holds the symmetric player → opponent mapping for every live
// pairing. Queue membership and table membership are mutually exclusive;
// the session coordinator enforces that before calling pair.
type matchTable struct {
	opponents map[string]string
}

func newMatchTable() *matchTable {
	return &matchTable{
		opponents: make(map[string]string),
	}
}

func (t *matchTable) pair(idA, idB string) error {
	if idA == idB {
		return errConflict
	}
	if _, ok := t.opponents[idA]; ok {
		return errConflict
	}
	if _, ok := t.opponents[idB]; ok {
		return errConflict
	}

	t.opponents[idA] = idB
	t.opponents[idB] = idA
	return nil
}

func (t *matchTable) opponentOf(id string) (string, bool) {
	opponent, ok := t.opponents[id]
	return opponent, ok
}

func (t *matchTable) paired(id string) bool {
	_, ok := t.opponents[id]
	return ok
}

// unpair removes both directions of id's pairing, if any; idempotent.
func (t *matchTable) unpair(id string) {
	opponent, ok := t.opponents[id]
	if !ok {
		return
	}

	delete(t.opponents, id)
	if t.opponents[opponent] == id {
		delete(t.opponents, opponent)
	}
}
